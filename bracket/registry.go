package bracket

import (
	"fmt"

	"github.com/tolelom/tolbracket/core"
)

// CreateTournament opens a tournament with room for capacity players. The
// reward is taken from caller through the Ledger and becomes the game's
// reward pool. Ids start at 0 and increase by one per tournament.
func (c *Contract) CreateTournament(caller string, capacity uint32, reward uint64) (uint32, error) {
	if err := c.requireCreator(caller); err != nil {
		return 0, err
	}
	if capacity == 0 {
		return 0, core.ErrInvalidCapacity
	}

	c.counterMu.Lock()
	defer c.counterMu.Unlock()

	id, err := c.store.Counter()
	if err != nil {
		return 0, fmt.Errorf("load counter: %w", err)
	}
	if id == ^uint32(0) {
		return 0, fmt.Errorf("tournament counter exhausted")
	}

	l := c.locks.get(id)
	l.Lock()
	defer l.Unlock()

	if err := c.ledger.Deposit(caller, reward); err != nil {
		return 0, fmt.Errorf("deposit reward: %w", err)
	}
	g := &core.Game{
		ID:         id,
		Capacity:   capacity,
		RewardPool: reward,
		Players:    []core.Player{},
	}
	if err := c.save(g); err != nil {
		return 0, err
	}
	if err := c.store.SetCounter(id + 1); err != nil {
		return 0, fmt.Errorf("store counter: %w", err)
	}
	return id, nil
}

// Register adds caller to tournament id as an undefeated player with no
// wins. Registration closes once the tournament has started or ended.
func (c *Contract) Register(id uint32, caller string) error {
	if caller == "" {
		return core.ErrUnauthorized
	}

	l := c.locks.get(id)
	l.Lock()
	defer l.Unlock()

	g, err := c.load(id)
	if err != nil {
		return err
	}
	if g.Started || g.Ended {
		return core.ErrRegistrationClosed
	}
	if uint32(len(g.Players)) >= g.Capacity {
		return core.ErrTournamentFull
	}
	if g.PlayerIndex(caller) >= 0 {
		return core.ErrAlreadyRegistered
	}

	g.Players = append(g.Players, core.Player{
		Account: caller,
		Active:  true,
	})
	return c.save(g)
}

// SetStatus overwrites the started and ended flags of tournament id and
// resets its round. It is the creator's manual override and bypasses the
// bracket's own conclusion logic, so ending a game here leaves it without
// a winner. A game that already ended fails with core.ErrTournamentEnded.
func (c *Contract) SetStatus(id uint32, started, ended bool, caller string) error {
	if err := c.requireCreator(caller); err != nil {
		return err
	}

	l := c.locks.get(id)
	l.Lock()
	defer l.Unlock()

	g, err := c.load(id)
	if err != nil {
		return err
	}
	if g.Ended {
		return core.ErrTournamentEnded
	}
	g.Started = started
	g.Ended = ended
	g.Round = 0
	return c.save(g)
}
