package core

// Account holds a participant's token balance and replay-protection nonce.
// Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"` // pubkey hex
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// Player is one participant's standing in one game.
type Player struct {
	Account    string `json:"account"` // pubkey hex
	Score      uint32 `json:"score"`   // wins so far
	Active     bool   `json:"active"`
	Eliminated bool   `json:"eliminated"`
}

// Game is the full mutable record of one tournament.
// Winner is nil until the tournament concludes.
type Game struct {
	ID         uint32   `json:"id"`
	Capacity   uint32   `json:"capacity"`
	RewardPool uint64   `json:"reward_pool"`
	Winner     *string  `json:"winner,omitempty"`
	Players    []Player `json:"players"`
	Started    bool     `json:"started"`
	Ended      bool     `json:"ended"`
	Claimed    bool     `json:"claimed"`
	Round      uint32   `json:"round"`
}

// PlayerIndex returns the position of account in g.Players, or -1.
func (g *Game) PlayerIndex(account string) int {
	for i := range g.Players {
		if g.Players[i].Account == account {
			return i
		}
	}
	return -1
}

// IsWinner reports whether account is the declared winner.
func (g *Game) IsWinner(account string) bool {
	return g.Winner != nil && *g.Winner == account
}

// Clone returns a deep copy so callers never share the Players backing array.
func (g *Game) Clone() *Game {
	cp := *g
	if g.Winner != nil {
		w := *g.Winner
		cp.Winner = &w
	}
	cp.Players = make([]Player, len(g.Players))
	copy(cp.Players, g.Players)
	return &cp
}

// State is the full ledger state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Tournaments
	GetGame(id uint32) (*Game, error)
	SetGame(id uint32, g *Game) error
	// Counter returns the next tournament id (0 for a fresh ledger).
	Counter() (uint32, error)
	SetCounter(n uint32) error
	// Creator returns the designated tournament creator, or ErrNotFound
	// before genesis has set one.
	Creator() (string, error)
	SetCreator(pubkey string) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
}
