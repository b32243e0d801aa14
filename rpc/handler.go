package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tolelom/tolbracket/bracket"
	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/indexer"
	"github.com/tolelom/tolbracket/vm"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	exec    *vm.Executor
	indexer *indexer.Indexer
}

// NewHandler creates an RPC Handler. Reads go through exec.View so they
// never observe a transaction halfway through.
func NewHandler(exec *vm.Executor, idx *indexer.Indexer) *Handler {
	return &Handler{exec: exec, indexer: idx}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getCounter":
		return h.view(req, func(c *bracket.Contract) (any, error) { return c.Counter() })

	case "getCreator":
		return h.view(req, func(c *bracket.Contract) (any, error) { return c.Creator() })

	case "getGame":
		return h.getGame(req)

	case "getPlayers":
		return h.getPlayers(req)

	case "getBalance":
		return h.getBalance(req)

	case "getGamesByPlayer":
		return h.gamesByPlayer(req, h.indexer.GamesByPlayer)

	case "getGamesWonBy":
		return h.gamesByPlayer(req, h.indexer.GamesWonBy)

	case "getChainID":
		return okResponse(req.ID, h.exec.ChainID())

	case "getStateRoot":
		return h.getStateRoot(req)

	case "sendTx":
		return h.sendTx(req)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// view runs fn against a read-only contract over committed state.
func (h *Handler) view(req Request, fn func(*bracket.Contract) (any, error)) Response {
	var result any
	err := h.exec.View(func(state core.State) error {
		var err error
		result, err = fn(bracket.New(state, nil))
		return err
	})
	if err != nil {
		return errorResponse(req.ID, err, CodeInternalError)
	}
	return okResponse(req.ID, result)
}

func tournamentID(req Request) (uint32, *Response) {
	var params struct {
		ID *uint32 `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		resp := errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
		return 0, &resp
	}
	if params.ID == nil {
		resp := errResponse(req.ID, CodeInvalidParams, "id is required")
		return 0, &resp
	}
	return *params.ID, nil
}

func (h *Handler) getGame(req Request) Response {
	id, bad := tournamentID(req)
	if bad != nil {
		return *bad
	}
	return h.view(req, func(c *bracket.Contract) (any, error) { return c.Game(id) })
}

func (h *Handler) getPlayers(req Request) Response {
	id, bad := tournamentID(req)
	if bad != nil {
		return *bad
	}
	return h.view(req, func(c *bracket.Contract) (any, error) { return c.Players(id) })
}

func (h *Handler) getBalance(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	var acc *core.Account
	err := h.exec.View(func(state core.State) error {
		var err error
		acc, err = state.GetAccount(params.Address)
		return err
	})
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, acc)
}

func (h *Handler) gamesByPlayer(req Request, lookup func(string) ([]uint32, error)) Response {
	var params struct {
		Player string `json:"player"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Player == "" {
		return errResponse(req.ID, CodeInvalidParams, "player is required")
	}
	ids, err := lookup(params.Player)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if ids == nil {
		ids = []uint32{}
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) getStateRoot(req Request) Response {
	var root string
	_ = h.exec.View(func(state core.State) error {
		root = state.ComputeRoot()
		return nil
	})
	return okResponse(req.ID, map[string]any{"state_root": root, "seq": h.exec.Seq()})
}

func (h *Handler) sendTx(req Request) Response {
	var tx core.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	rcpt, err := h.exec.ExecuteTx(&tx)
	if err != nil {
		logrus.WithFields(logrus.Fields{"tx": tx.ID, "type": tx.Type}).WithError(err).Info("tx rejected")
		return errorResponse(req.ID, err, CodeTxRejected)
	}
	return okResponse(req.ID, rcpt)
}
