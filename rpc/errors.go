package rpc

import (
	"errors"

	"github.com/tolelom/tolbracket/core"
)

// Domain error codes. Clients match on Code or on Error.Data; both are
// stable.
const (
	CodeTxRejected = -32001 // any other execution failure

	CodeNotFound                = -32004
	CodeForbidden               = -32010
	CodeTournamentFull          = -32011
	CodeAlreadyRegistered       = -32012
	CodePlayerNotFound          = -32013
	CodeScoreMismatch           = -32014
	CodeInvalidWinner           = -32015
	CodePlayerAlreadyEliminated = -32016
	CodeTournamentEnded         = -32017
	CodeTournamentNotStarted    = -32018
	CodeTournamentNotEnded      = -32019
	CodeTransferFailed          = -32020
	CodeAlreadyClaimed          = -32021
	CodeRegistrationClosed      = -32022
	CodeSelfMatch               = -32023
	CodeInvalidCapacity         = -32024
)

var domainErrors = []struct {
	err  error
	code int
	kind string
}{
	{core.ErrTransferFailed, CodeTransferFailed, "TransferFailed"},
	{core.ErrNotFound, CodeNotFound, "NotFound"},
	{core.ErrUnauthorized, CodeForbidden, "Unauthorized"},
	{core.ErrTournamentFull, CodeTournamentFull, "TournamentFull"},
	{core.ErrAlreadyRegistered, CodeAlreadyRegistered, "AlreadyRegistered"},
	{core.ErrPlayerNotFound, CodePlayerNotFound, "PlayerNotFound"},
	{core.ErrScoreMismatch, CodeScoreMismatch, "ScoreMismatch"},
	{core.ErrInvalidWinner, CodeInvalidWinner, "InvalidWinner"},
	{core.ErrPlayerAlreadyEliminated, CodePlayerAlreadyEliminated, "PlayerAlreadyEliminated"},
	{core.ErrTournamentEnded, CodeTournamentEnded, "TournamentEnded"},
	{core.ErrTournamentNotStarted, CodeTournamentNotStarted, "TournamentNotStarted"},
	{core.ErrTournamentNotEnded, CodeTournamentNotEnded, "TournamentNotEnded"},
	{core.ErrAlreadyClaimed, CodeAlreadyClaimed, "AlreadyClaimed"},
	{core.ErrRegistrationClosed, CodeRegistrationClosed, "RegistrationClosed"},
	{core.ErrSelfMatch, CodeSelfMatch, "SelfMatch"},
	{core.ErrInvalidCapacity, CodeInvalidCapacity, "InvalidCapacity"},
}

// errorResponse maps err onto a domain code, falling back to fallback.
func errorResponse(id any, err error, fallback int) Response {
	resp := errResponse(id, fallback, err.Error())
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			resp.Error.Code = d.code
			resp.Error.Data = d.kind
			break
		}
	}
	return resp
}
