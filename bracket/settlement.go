package bracket

import (
	"fmt"

	"github.com/tolelom/tolbracket/core"
)

// ClaimReward pays the reward pool of tournament id to caller, who must be
// its declared winner. A failed transfer is returned as
// core.ErrTransferFailed and leaves the game exactly as it was, so the
// winner can retry. A pool is paid at most once: the claim is stored before
// the payout, so a store failure can never leave a paid pool unclaimed.
func (c *Contract) ClaimReward(id uint32, caller string) (uint64, error) {
	l := c.locks.get(id)
	l.Lock()
	defer l.Unlock()

	g, err := c.load(id)
	if err != nil {
		return 0, err
	}
	if !g.IsWinner(caller) {
		return 0, core.ErrUnauthorized
	}
	if !g.Ended {
		return 0, core.ErrTournamentNotEnded
	}
	if g.Claimed {
		return 0, core.ErrAlreadyClaimed
	}

	g.Claimed = true
	if err := c.save(g); err != nil {
		return 0, err
	}
	if err := c.ledger.Transfer(caller, g.RewardPool); err != nil {
		g.Claimed = false
		if serr := c.save(g); serr != nil {
			return 0, fmt.Errorf("%w: %v (release claim: %v)", core.ErrTransferFailed, err, serr)
		}
		return 0, fmt.Errorf("%w: %v", core.ErrTransferFailed, err)
	}
	return g.RewardPool, nil
}
