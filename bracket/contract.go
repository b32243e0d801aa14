// Package bracket implements the single-elimination tournament contract:
// tournament creation and registration, the match-result state machine,
// and the one-time reward settlement.
//
// A Contract holds no ledger state of its own. Games, the id counter and
// the creator identity live in a Store; the reward pool moves through a
// Ledger. Both are supplied by the caller, so tests and the VM module can
// each run the contract against their own backend.
package bracket

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tolelom/tolbracket/core"
)

// Store is the persistent map the contract reads and writes. GetGame must
// return core.ErrNotFound for unknown ids.
type Store interface {
	Counter() (uint32, error)
	SetCounter(n uint32) error
	Creator() (string, error)
	GetGame(id uint32) (*core.Game, error)
	SetGame(id uint32, g *core.Game) error
}

// Ledger moves value in and out of the reward pool. It is not transactional
// with the Store; the contract orders its writes so a failure on either side
// never pays a pool twice.
type Ledger interface {
	// Deposit takes amount from the creator into the pool.
	Deposit(from string, amount uint64) error
	// Transfer pays amount out of the pool. A failure is retryable.
	Transfer(to string, amount uint64) error
}

// Contract serializes every mutating call per tournament id. Reads take the
// same lock shared, so they never observe a half-written game.
type Contract struct {
	store  Store
	ledger Ledger

	counterMu sync.Mutex
	locks     lockTable
}

// New returns a Contract over store and ledger.
func New(store Store, ledger Ledger) *Contract {
	return &Contract{store: store, ledger: ledger}
}

type lockTable struct {
	mu sync.Mutex
	m  map[uint32]*sync.RWMutex
}

func (t *lockTable) get(id uint32) *sync.RWMutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		t.m = make(map[uint32]*sync.RWMutex)
	}
	l, ok := t.m[id]
	if !ok {
		l = new(sync.RWMutex)
		t.m[id] = l
	}
	return l
}

// Counter returns the id the next tournament will get.
func (c *Contract) Counter() (uint32, error) {
	c.counterMu.Lock()
	defer c.counterMu.Unlock()
	return c.store.Counter()
}

// Creator returns the only identity allowed to create and run tournaments.
func (c *Contract) Creator() (string, error) {
	return c.store.Creator()
}

// Game returns a copy of tournament id.
func (c *Contract) Game(id uint32) (*core.Game, error) {
	l := c.locks.get(id)
	l.RLock()
	defer l.RUnlock()
	return c.load(id)
}

// Players returns a copy of the player list of tournament id, in
// registration order.
func (c *Contract) Players(id uint32) ([]core.Player, error) {
	g, err := c.Game(id)
	if err != nil {
		return nil, err
	}
	return g.Players, nil
}

// load fetches a private copy of the game. Mutations happen on the copy and
// only reach the store through save, so a failed precondition never leaves
// a partial update behind.
func (c *Contract) load(id uint32) (*core.Game, error) {
	g, err := c.store.GetGame(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("tournament %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load tournament %d: %w", id, err)
	}
	return g.Clone(), nil
}

func (c *Contract) save(g *core.Game) error {
	if err := c.store.SetGame(g.ID, g); err != nil {
		return fmt.Errorf("store tournament %d: %w", g.ID, err)
	}
	return nil
}

// requireCreator fails with core.ErrUnauthorized unless caller is the
// designated creator. A store without a creator authorizes nobody.
func (c *Contract) requireCreator(caller string) error {
	creator, err := c.store.Creator()
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("no tournament creator configured: %w", core.ErrUnauthorized)
	}
	if err != nil {
		return fmt.Errorf("load creator: %w", err)
	}
	if caller == "" || caller != creator {
		return core.ErrUnauthorized
	}
	return nil
}
