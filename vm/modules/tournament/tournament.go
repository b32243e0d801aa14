// Package tournament exposes the bracket contract as VM transactions. The
// transaction sender is the caller identity for every operation.
package tournament

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/tolbracket/bracket"
	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/events"
	"github.com/tolelom/tolbracket/vm"
)

func init() {
	vm.Register(core.TxCreateTournament, handleCreate)
	vm.Register(core.TxRegister, handleRegister)
	vm.Register(core.TxSetStatus, handleSetStatus)
	vm.Register(core.TxReportResult, handleReportResult)
	vm.Register(core.TxClaimReward, handleClaimReward)
}

func contract(ctx *vm.Context) *bracket.Contract {
	return bracket.New(ctx.State, escrowLedger{state: ctx.State})
}

func handleCreate(ctx *vm.Context, payload json.RawMessage) error {
	var p core.CreateTournamentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode create_tournament payload: %w", err)
	}
	id, err := contract(ctx).CreateTournament(ctx.Tx.From, p.Capacity, p.Reward)
	if err != nil {
		return err
	}
	ctx.Emit(events.EventTournamentCreated, map[string]any{
		"tournament_id": id,
		"capacity":      p.Capacity,
		"reward":        p.Reward,
	})
	return nil
}

func handleRegister(ctx *vm.Context, payload json.RawMessage) error {
	var p core.RegisterPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode register_tournament payload: %w", err)
	}
	if err := contract(ctx).Register(p.TournamentID, ctx.Tx.From); err != nil {
		return err
	}
	ctx.Emit(events.EventPlayerRegistered, map[string]any{
		"tournament_id": p.TournamentID,
		"player":        ctx.Tx.From,
	})
	return nil
}

func handleSetStatus(ctx *vm.Context, payload json.RawMessage) error {
	var p core.SetStatusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode set_tournament_status payload: %w", err)
	}
	if err := contract(ctx).SetStatus(p.TournamentID, p.Started, p.Ended, ctx.Tx.From); err != nil {
		return err
	}
	ctx.Emit(events.EventTournamentStatus, map[string]any{
		"tournament_id": p.TournamentID,
		"started":       p.Started,
		"ended":         p.Ended,
	})
	return nil
}

func handleReportResult(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ReportResultPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode report_result payload: %w", err)
	}
	res, err := contract(ctx).ReportResult(p.TournamentID, p.PlayerA, p.PlayerB, p.Winner, ctx.Tx.From)
	if err != nil {
		return err
	}

	ctx.Emit(events.EventMatchReported, map[string]any{
		"tournament_id": p.TournamentID,
		"winner":        res.Winner,
		"loser":         res.Loser,
		"winner_score":  res.WinnerScore,
	})
	if res.RoundAdvanced {
		ctx.Emit(events.EventRoundAdvanced, map[string]any{
			"tournament_id": p.TournamentID,
			"round":         res.Round,
		})
	}
	if res.Ended {
		ctx.Emit(events.EventTournamentEnded, map[string]any{
			"tournament_id": p.TournamentID,
			"winner":        res.Winner,
		})
	}
	return nil
}

func handleClaimReward(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ClaimRewardPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode claim_reward payload: %w", err)
	}
	amount, err := contract(ctx).ClaimReward(p.TournamentID, ctx.Tx.From)
	if err != nil {
		return err
	}
	ctx.Emit(events.EventRewardClaimed, map[string]any{
		"tournament_id": p.TournamentID,
		"winner":        ctx.Tx.From,
		"amount":        amount,
	})
	return nil
}
