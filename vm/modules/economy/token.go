package economy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/crypto"
	"github.com/tolelom/tolbracket/events"
	"github.com/tolelom/tolbracket/vm"
)

func init() {
	vm.Register(core.TxTransfer, handleTransfer)
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer payload: %w", err)
	}
	if p.Amount == 0 {
		return errors.New("transfer amount must be > 0")
	}
	if !crypto.IsPubKeyHex(p.To) {
		return fmt.Errorf("transfer to %q: not a pubkey hex", p.To)
	}
	if err := Move(ctx.State, ctx.Tx.From, p.To, p.Amount); err != nil {
		return err
	}

	ctx.Emit(events.EventTokenTransfer, map[string]any{
		"from":   ctx.Tx.From,
		"to":     p.To,
		"amount": p.Amount,
	})
	return nil
}

// ErrBalanceOverflow is returned when a credit would wrap the recipient's
// balance.
var ErrBalanceOverflow = errors.New("recipient balance overflow")

// Move debits from and credits to by amount. It is shared with modules that
// hold balances on behalf of users. Nothing is written unless both sides of
// the move fit.
func Move(state core.State, from, to string, amount uint64) error {
	sender, err := state.GetAccount(from)
	if err != nil {
		return err
	}
	if sender.Balance < amount {
		return fmt.Errorf("insufficient balance: have %d, need %d", sender.Balance, amount)
	}
	if from == to {
		return nil
	}
	recipient, err := state.GetAccount(to)
	if err != nil {
		return err
	}
	if recipient.Balance > math.MaxUint64-amount {
		return fmt.Errorf("credit %d to %s: %w", amount, to, ErrBalanceOverflow)
	}

	sender.Balance -= amount
	recipient.Balance += amount
	if err := state.SetAccount(sender); err != nil {
		return err
	}
	return state.SetAccount(recipient)
}
