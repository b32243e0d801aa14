package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tolelom/tolbracket/config"
	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/events"
	"github.com/tolelom/tolbracket/indexer"
	"github.com/tolelom/tolbracket/internal/testutil"
	"github.com/tolelom/tolbracket/rpc"
	"github.com/tolelom/tolbracket/storage"
	"github.com/tolelom/tolbracket/vm"
	"github.com/tolelom/tolbracket/wallet"

	// Register VM modules
	_ "github.com/tolelom/tolbracket/vm/modules/economy"
	_ "github.com/tolelom/tolbracket/vm/modules/tournament"
)

const (
	chainID = "test-chain"
	token   = "secret"
)

type node struct {
	url     string
	creator *wallet.Wallet
	stream  *rpc.Stream
	handler *rpc.Handler
}

// startTestNode serves a fresh in-memory ledger over httptest.
func startTestNode(t *testing.T) *node {
	t.Helper()
	creator, err := wallet.Generate(chainID)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Creator = creator.PubKey()
	cfg.Genesis.ChainID = chainID
	cfg.Genesis.Alloc[creator.PubKey()] = 1000

	db := testutil.NewMemDB()
	state := storage.NewStateDB(db)
	if _, err := config.ApplyGenesis(cfg, state); err != nil {
		t.Fatal(err)
	}
	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	exec := vm.NewExecutor(state, emitter, chainID)
	stream := rpc.NewStream(emitter)
	handler := rpc.NewHandler(exec, idx)

	srv := rpc.NewServer("127.0.0.1:0", handler, stream, token, nil)
	ts := httptest.NewServer(srv.Routes(nil))
	t.Cleanup(func() {
		stream.Close()
		ts.Close()
	})
	return &node{url: ts.URL, creator: creator, stream: stream, handler: handler}
}

func (n *node) client() *rpc.Client {
	return rpc.NewClient(n.url, token)
}

// send signs with w at its current nonce and submits.
func (n *node) send(t *testing.T, w *wallet.Wallet, build func(nonce uint64) (*core.Transaction, error)) (*vm.Receipt, error) {
	t.Helper()
	ctx := context.Background()
	var acc core.Account
	if err := n.client().Call(ctx, "getBalance", map[string]string{"address": w.PubKey()}, &acc); err != nil {
		t.Fatalf("getBalance: %v", err)
	}
	tx, err := build(acc.Nonce)
	if err != nil {
		t.Fatal(err)
	}
	var rcpt vm.Receipt
	if err := n.client().Call(ctx, "sendTx", tx, &rcpt); err != nil {
		return nil, err
	}
	return &rcpt, nil
}

func rpcErr(t *testing.T, err error) *rpc.Error {
	t.Helper()
	var e *rpc.Error
	if !errors.As(err, &e) {
		t.Fatalf("got %v, want *rpc.Error", err)
	}
	return e
}

func TestRPCRequiresToken(t *testing.T) {
	n := startTestNode(t)
	err := rpc.NewClient(n.url, "").Call(context.Background(), "getCounter", nil, nil)
	if e := rpcErr(t, err); e.Code != rpc.CodeUnauthorized {
		t.Errorf("code: got %d want %d", e.Code, rpc.CodeUnauthorized)
	}

	resp, err := http.Get(n.url + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health without token: %s", resp.Status)
	}
}

func TestRPCTournamentFlow(t *testing.T) {
	n := startTestNode(t)
	ctx := context.Background()
	c := n.creator
	alice, _ := wallet.Generate(chainID)

	var chain string
	if err := n.client().Call(ctx, "getChainID", nil, &chain); err != nil || chain != chainID {
		t.Fatalf("getChainID: %q, %v", chain, err)
	}
	var creator string
	if err := n.client().Call(ctx, "getCreator", nil, &creator); err != nil || creator != c.PubKey() {
		t.Fatalf("getCreator: %q, %v", creator, err)
	}

	rcpt, err := n.send(t, c, func(nonce uint64) (*core.Transaction, error) { return c.CreateTournament(2, 100, nonce, 0) })
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rcpt.Seq != 1 || rcpt.StateRoot == "" {
		t.Errorf("receipt: %+v", rcpt)
	}
	if _, err := n.send(t, alice, func(nonce uint64) (*core.Transaction, error) { return alice.Register(0, nonce, 0) }); err != nil {
		t.Fatalf("register: %v", err)
	}

	var counter uint32
	if err := n.client().Call(ctx, "getCounter", nil, &counter); err != nil || counter != 1 {
		t.Errorf("getCounter: %d, %v", counter, err)
	}
	var g core.Game
	if err := n.client().Call(ctx, "getGame", map[string]uint32{"id": 0}, &g); err != nil {
		t.Fatalf("getGame: %v", err)
	}
	if g.Capacity != 2 || g.RewardPool != 100 || len(g.Players) != 1 || g.Winner != nil {
		t.Errorf("game: %+v", g)
	}
	var ps []core.Player
	if err := n.client().Call(ctx, "getPlayers", map[string]uint32{"id": 0}, &ps); err != nil {
		t.Fatalf("getPlayers: %v", err)
	}
	if len(ps) != 1 || ps[0].Account != alice.PubKey() || !ps[0].Active {
		t.Errorf("players: %+v", ps)
	}
	var ids []uint32
	if err := n.client().Call(ctx, "getGamesByPlayer", map[string]string{"player": alice.PubKey()}, &ids); err != nil {
		t.Fatalf("getGamesByPlayer: %v", err)
	}
	if len(ids) != 1 || ids[0] != 0 {
		t.Errorf("games by player: %v", ids)
	}

	// Domain errors keep their identity across the wire.
	_, err = n.send(t, alice, func(nonce uint64) (*core.Transaction, error) { return alice.Register(0, nonce, 0) })
	e := rpcErr(t, err)
	if e.Code != rpc.CodeAlreadyRegistered || e.Data != "AlreadyRegistered" {
		t.Errorf("duplicate register: %+v", e)
	}
	_, err = n.send(t, alice, func(nonce uint64) (*core.Transaction, error) { return alice.ClaimReward(0, nonce, 0) })
	if e := rpcErr(t, err); e.Code != rpc.CodeForbidden {
		t.Errorf("claim before end: %+v", e)
	}
}

func TestRPCErrors(t *testing.T) {
	n := startTestNode(t)
	ctx := context.Background()

	cases := []struct {
		method string
		params any
		code   int
	}{
		{"nonExistentMethod", nil, rpc.CodeMethodNotFound},
		{"getGame", map[string]uint32{"id": 42}, rpc.CodeNotFound},
		{"getGame", map[string]string{}, rpc.CodeInvalidParams},
		{"getPlayers", map[string]string{"id": "zero"}, rpc.CodeInvalidParams},
		{"getBalance", map[string]string{}, rpc.CodeInvalidParams},
		{"getGamesWonBy", map[string]string{}, rpc.CodeInvalidParams},
		{"sendTx", "not a tx", rpc.CodeInvalidParams},
	}
	for _, tc := range cases {
		err := n.client().Call(ctx, tc.method, tc.params, nil)
		if e := rpcErr(t, err); e.Code != tc.code {
			t.Errorf("%s(%v): code %d want %d (%s)", tc.method, tc.params, e.Code, tc.code, e.Message)
		}
	}

	// A tx for another chain is rejected with the generic code.
	foreign, _ := wallet.Generate("other-chain")
	tx, _ := foreign.Transfer(n.creator.PubKey(), 1, 0, 0)
	if e := rpcErr(t, n.client().Call(ctx, "sendTx", tx, nil)); e.Code != rpc.CodeTxRejected {
		t.Errorf("foreign chain: %+v", e)
	}
}

func TestRPCRejectsBadEnvelope(t *testing.T) {
	n := startTestNode(t)
	post := func(body string) rpc.Response {
		req, _ := http.NewRequest(http.MethodPost, n.url, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var out rpc.Response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		return out
	}
	if r := post("{"); r.Error == nil || r.Error.Code != rpc.CodeParseError {
		t.Errorf("parse error: %+v", r.Error)
	}
	if r := post(`{"jsonrpc":"1.0","id":1,"method":"getCounter"}`); r.Error == nil || r.Error.Code != rpc.CodeInvalidRequest {
		t.Errorf("invalid request: %+v", r.Error)
	}
}

// TestDispatchDirect calls the handler without HTTP, as in-process callers do.
func TestDispatchDirect(t *testing.T) {
	n := startTestNode(t)
	resp := n.handler.Dispatch(rpc.Request{JSONRPC: "2.0", ID: 1, Method: "getCounter", Params: json.RawMessage(`{}`)})
	if resp.Error != nil {
		t.Fatalf("error: %v", resp.Error.Message)
	}
	if counter, ok := resp.Result.(uint32); !ok || counter != 0 {
		t.Errorf("result: %#v", resp.Result)
	}
}

func TestStreamDeliversFilteredEvents(t *testing.T) {
	n := startTestNode(t)
	c := n.creator
	if _, err := n.send(t, c, func(nonce uint64) (*core.Transaction, error) { return c.CreateTournament(4, 0, nonce, 0) }); err != nil {
		t.Fatal(err)
	}
	if _, err := n.send(t, c, func(nonce uint64) (*core.Transaction, error) { return c.CreateTournament(4, 0, nonce, 0) }); err != nil {
		t.Fatal(err)
	}

	wsURL := "ws" + strings.TrimPrefix(n.url, "http") + "/ws?tournament=1&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for n.stream.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	alice, _ := wallet.Generate(chainID)
	// Tournament 0 is filtered out; tournament 1 is delivered.
	if _, err := n.send(t, alice, func(nonce uint64) (*core.Transaction, error) { return alice.Register(0, nonce, 0) }); err != nil {
		t.Fatal(err)
	}
	if _, err := n.send(t, alice, func(nonce uint64) (*core.Transaction, error) { return alice.Register(1, nonce, 0) }); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev events.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != events.EventPlayerRegistered || ev.Data["player"] != alice.PubKey() || ev.Data["tournament_id"] != float64(1) {
		t.Errorf("event: %+v", ev)
	}
	if ev.Seq != 4 {
		t.Errorf("seq: got %d want 4", ev.Seq)
	}
}

func TestStreamRequiresToken(t *testing.T) {
	n := startTestNode(t)
	wsURL := "ws" + strings.TrimPrefix(n.url, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response: %v", resp)
	}
}
