package tournament_test

import (
	"errors"
	"math"
	"testing"

	"github.com/tolelom/tolbracket/config"
	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/events"
	"github.com/tolelom/tolbracket/internal/testutil"
	"github.com/tolelom/tolbracket/vm"
	"github.com/tolelom/tolbracket/vm/modules/tournament"
	"github.com/tolelom/tolbracket/wallet"

	_ "github.com/tolelom/tolbracket/vm/modules/economy"
)

const chainID = "test-chain"

type harness struct {
	t       *testing.T
	state   core.State
	exec    *vm.Executor
	creator *wallet.Wallet
	nonces  map[string]uint64
	events  []events.Event
}

func newHarness(t *testing.T, creatorBalance uint64) *harness {
	t.Helper()
	creator, err := wallet.Generate(chainID)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Creator = creator.PubKey()
	cfg.Genesis.ChainID = chainID
	cfg.Genesis.Alloc[creator.PubKey()] = creatorBalance

	state := testutil.NewStateDB()
	if _, err := config.ApplyGenesis(cfg, state); err != nil {
		t.Fatalf("ApplyGenesis: %v", err)
	}
	h := &harness{t: t, state: state, creator: creator, nonces: map[string]uint64{}}
	emitter := events.NewEmitter()
	emitter.SubscribeAll(func(ev events.Event) { h.events = append(h.events, ev) })
	h.exec = vm.NewExecutor(state, emitter, chainID)
	return h
}

// send signs a tx with w's next nonce and executes it. The nonce only
// advances when the tx commits.
func (h *harness) send(w *wallet.Wallet, build func(nonce uint64) (*core.Transaction, error)) error {
	h.t.Helper()
	tx, err := build(h.nonces[w.PubKey()])
	if err != nil {
		h.t.Fatal(err)
	}
	if _, err := h.exec.ExecuteTx(tx); err != nil {
		return err
	}
	h.nonces[w.PubKey()]++
	return nil
}

func (h *harness) must(w *wallet.Wallet, build func(nonce uint64) (*core.Transaction, error)) {
	h.t.Helper()
	if err := h.send(w, build); err != nil {
		h.t.Fatalf("tx from %s: %v", w.PubKey()[:8], err)
	}
}

func (h *harness) balance(addr string) uint64 {
	acc, err := h.state.GetAccount(addr)
	if err != nil {
		h.t.Fatal(err)
	}
	return acc.Balance
}

func (h *harness) game(id uint32) *core.Game {
	g, err := h.state.GetGame(id)
	if err != nil {
		h.t.Fatalf("GetGame(%d): %v", id, err)
	}
	return g
}

func (h *harness) countEvents(typ events.EventType) int {
	n := 0
	for _, ev := range h.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func players(t *testing.T, n int) []*wallet.Wallet {
	ws := make([]*wallet.Wallet, n)
	for i := range ws {
		w, err := wallet.Generate(chainID)
		if err != nil {
			t.Fatal(err)
		}
		ws[i] = w
	}
	return ws
}

// TestFullTournament runs a four-player tournament from creation to payout
// through signed transactions.
func TestFullTournament(t *testing.T) {
	h := newHarness(t, 1000)
	c := h.creator
	p := players(t, 4)

	h.must(c, func(n uint64) (*core.Transaction, error) { return c.CreateTournament(4, 400, n, 0) })
	if h.balance(c.PubKey()) != 600 || h.balance(tournament.EscrowAccount) != 400 {
		t.Fatalf("after create: creator=%d escrow=%d", h.balance(c.PubKey()), h.balance(tournament.EscrowAccount))
	}
	if n, _ := h.state.Counter(); n != 1 {
		t.Errorf("counter: got %d want 1", n)
	}

	for _, w := range p {
		h.must(w, func(n uint64) (*core.Transaction, error) { return w.Register(0, n, 0) })
	}
	h.must(c, func(n uint64) (*core.Transaction, error) { return c.SetStatus(0, true, false, n, 0) })

	report := func(a, b, winner *wallet.Wallet) {
		h.must(c, func(n uint64) (*core.Transaction, error) {
			return c.ReportResult(0, a.PubKey(), b.PubKey(), winner.PubKey(), n, 0)
		})
	}
	report(p[0], p[1], p[0])
	report(p[2], p[3], p[2])
	if g := h.game(0); g.Round != 1 || g.Ended {
		t.Fatalf("after round 0: round=%d ended=%v", g.Round, g.Ended)
	}
	report(p[0], p[2], p[0])

	g := h.game(0)
	if !g.Ended || !g.IsWinner(p[0].PubKey()) || g.Round != 2 {
		t.Fatalf("after final: ended=%v winner=%v round=%d", g.Ended, g.Winner, g.Round)
	}
	if h.countEvents(events.EventTournamentEnded) != 1 || h.countEvents(events.EventRoundAdvanced) != 2 {
		t.Errorf("ended=%d advanced=%d events", h.countEvents(events.EventTournamentEnded), h.countEvents(events.EventRoundAdvanced))
	}

	// A loser cannot claim.
	loser := p[1]
	err := h.send(loser, func(n uint64) (*core.Transaction, error) { return loser.ClaimReward(0, n, 0) })
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("loser claim: got %v want ErrUnauthorized", err)
	}

	winner := p[0]
	h.must(winner, func(n uint64) (*core.Transaction, error) { return winner.ClaimReward(0, n, 0) })
	if h.balance(winner.PubKey()) != 400 || h.balance(tournament.EscrowAccount) != 0 {
		t.Errorf("after claim: winner=%d escrow=%d", h.balance(winner.PubKey()), h.balance(tournament.EscrowAccount))
	}
	if !h.game(0).Claimed {
		t.Error("game should be marked claimed")
	}

	err = h.send(winner, func(n uint64) (*core.Transaction, error) { return winner.ClaimReward(0, n, 0) })
	if !errors.Is(err, core.ErrAlreadyClaimed) {
		t.Errorf("second claim: got %v want ErrAlreadyClaimed", err)
	}
	if h.balance(winner.PubKey()) != 400 {
		t.Error("second claim paid out")
	}
}

func TestCreateRequiresFunds(t *testing.T) {
	h := newHarness(t, 100)
	c := h.creator

	err := h.send(c, func(n uint64) (*core.Transaction, error) { return c.CreateTournament(2, 500, n, 0) })
	if err == nil {
		t.Fatal("reward above the creator's balance was accepted")
	}
	if n, _ := h.state.Counter(); n != 0 {
		t.Errorf("counter advanced to %d on a failed create", n)
	}
	if h.balance(c.PubKey()) != 100 {
		t.Errorf("creator balance: got %d want 100", h.balance(c.PubKey()))
	}
}

func TestOnlyCreatorManagesTournaments(t *testing.T) {
	h := newHarness(t, 100)
	c := h.creator
	intruder := players(t, 1)[0]

	err := h.send(intruder, func(n uint64) (*core.Transaction, error) { return intruder.CreateTournament(2, 0, n, 0) })
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("create by non-creator: got %v", err)
	}

	h.must(c, func(n uint64) (*core.Transaction, error) { return c.CreateTournament(2, 0, n, 0) })
	err = h.send(intruder, func(n uint64) (*core.Transaction, error) { return intruder.SetStatus(0, true, false, n, 0) })
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("set status by non-creator: got %v", err)
	}
	if h.game(0).Started {
		t.Error("non-creator started the tournament")
	}
}

func TestRejectedReportLeavesGameUnchanged(t *testing.T) {
	h := newHarness(t, 100)
	c := h.creator
	p := players(t, 2)

	h.must(c, func(n uint64) (*core.Transaction, error) { return c.CreateTournament(2, 10, n, 0) })
	for _, w := range p {
		h.must(w, func(n uint64) (*core.Transaction, error) { return w.Register(0, n, 0) })
	}
	h.must(c, func(n uint64) (*core.Transaction, error) { return c.SetStatus(0, true, false, n, 0) })
	before := h.state.ComputeRoot()

	stranger := players(t, 1)[0]
	err := h.send(c, func(n uint64) (*core.Transaction, error) {
		return c.ReportResult(0, p[0].PubKey(), stranger.PubKey(), p[0].PubKey(), n, 0)
	})
	if !errors.Is(err, core.ErrPlayerNotFound) {
		t.Errorf("got %v want ErrPlayerNotFound", err)
	}
	if h.state.ComputeRoot() != before {
		t.Error("rejected report changed state")
	}

	// Two players: a single win ends it.
	h.must(c, func(n uint64) (*core.Transaction, error) {
		return c.ReportResult(0, p[0].PubKey(), p[1].PubKey(), p[1].PubKey(), n, 0)
	})
	if !h.game(0).IsWinner(p[1].PubKey()) {
		t.Error("p1 should have won")
	}
}

func TestClaimThatWouldOverflowWinnerIsRejected(t *testing.T) {
	h := newHarness(t, 100)
	c := h.creator
	p := players(t, 2)

	h.must(c, func(n uint64) (*core.Transaction, error) { return c.CreateTournament(2, 50, n, 0) })
	for _, w := range p {
		h.must(w, func(n uint64) (*core.Transaction, error) { return w.Register(0, n, 0) })
	}
	h.must(c, func(n uint64) (*core.Transaction, error) { return c.SetStatus(0, true, false, n, 0) })
	h.must(c, func(n uint64) (*core.Transaction, error) {
		return c.ReportResult(0, p[0].PubKey(), p[1].PubKey(), p[0].PubKey(), n, 0)
	})

	winner := p[0]
	setBalance := func(bal uint64) {
		if err := h.state.SetAccount(&core.Account{Address: winner.PubKey(), Balance: bal}); err != nil {
			t.Fatal(err)
		}
	}
	setBalance(math.MaxUint64 - 10)

	err := h.send(winner, func(n uint64) (*core.Transaction, error) { return winner.ClaimReward(0, n, 0) })
	if !errors.Is(err, core.ErrTransferFailed) {
		t.Fatalf("got %v want ErrTransferFailed", err)
	}
	if h.game(0).Claimed {
		t.Error("game marked claimed although nothing was paid")
	}
	if h.balance(winner.PubKey()) != math.MaxUint64-10 || h.balance(tournament.EscrowAccount) != 50 {
		t.Errorf("balances moved: winner=%d escrow=%d", h.balance(winner.PubKey()), h.balance(tournament.EscrowAccount))
	}

	setBalance(0)
	h.must(winner, func(n uint64) (*core.Transaction, error) { return winner.ClaimReward(0, n, 0) })
	if h.balance(winner.PubKey()) != 50 || h.balance(tournament.EscrowAccount) != 0 || !h.game(0).Claimed {
		t.Errorf("retry: winner=%d escrow=%d claimed=%v", h.balance(winner.PubKey()), h.balance(tournament.EscrowAccount), h.game(0).Claimed)
	}
}
