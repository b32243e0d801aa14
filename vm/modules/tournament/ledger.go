package tournament

import (
	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/vm/modules/economy"
)

// EscrowAccount holds every open reward pool. It is not a public key, so no
// transaction can ever be signed from it.
const EscrowAccount = "escrow:tournament"

// escrowLedger keeps reward pools as a balance on EscrowAccount.
type escrowLedger struct {
	state core.State
}

func (l escrowLedger) Deposit(from string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return economy.Move(l.state, from, EscrowAccount, amount)
}

func (l escrowLedger) Transfer(to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return economy.Move(l.state, EscrowAccount, to, amount)
}
