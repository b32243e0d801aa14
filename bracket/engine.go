package bracket

import (
	"fmt"

	"github.com/tolelom/tolbracket/core"
)

// Result describes what one accepted match report changed.
type Result struct {
	Winner        string `json:"winner"`
	Loser         string `json:"loser"`
	WinnerScore   uint32 `json:"winner_score"`
	Round         uint32 `json:"round"`
	RoundAdvanced bool   `json:"round_advanced"`
	Ended         bool   `json:"ended"`
}

// ReportResult records that winner beat the other of a and b in tournament
// id. Only the creator may report, and only while the tournament is running.
func (c *Contract) ReportResult(id uint32, a, b, winner, caller string) (Result, error) {
	if err := c.requireCreator(caller); err != nil {
		return Result{}, err
	}

	l := c.locks.get(id)
	l.Lock()
	defer l.Unlock()

	g, err := c.load(id)
	if err != nil {
		return Result{}, err
	}
	if g.Ended {
		return Result{}, core.ErrTournamentEnded
	}
	if !g.Started {
		return Result{}, core.ErrTournamentNotStarted
	}
	res, err := advance(g, a, b, winner)
	if err != nil {
		return Result{}, err
	}
	if err := c.save(g); err != nil {
		return Result{}, err
	}
	return res, nil
}

// advance applies one match result to g in place. It checks that both
// players exist, are tied on score, that winner is one of them, and that
// neither has been eliminated; on any failure g is left untouched.
//
// The winner gains a point and the loser is eliminated. The tournament ends
// as soon as the winner's score reaches half the field (integer division).
// Otherwise the round advances once at least half the field has won a match
// in the current round.
func advance(g *core.Game, a, b, winner string) (Result, error) {
	ia := g.PlayerIndex(a)
	if ia < 0 {
		return Result{}, fmt.Errorf("player %s: %w", a, core.ErrPlayerNotFound)
	}
	ib := g.PlayerIndex(b)
	if ib < 0 {
		return Result{}, fmt.Errorf("player %s: %w", b, core.ErrPlayerNotFound)
	}
	if ia == ib {
		return Result{}, core.ErrSelfMatch
	}
	pa, pb := &g.Players[ia], &g.Players[ib]
	if pa.Score != pb.Score {
		return Result{}, fmt.Errorf("%d vs %d: %w", pa.Score, pb.Score, core.ErrScoreMismatch)
	}
	if winner != a && winner != b {
		return Result{}, core.ErrInvalidWinner
	}
	if pa.Eliminated {
		return Result{}, fmt.Errorf("player %s: %w", a, core.ErrPlayerAlreadyEliminated)
	}
	if pb.Eliminated {
		return Result{}, fmt.Errorf("player %s: %w", b, core.ErrPlayerAlreadyEliminated)
	}

	w, lo := pa, pb
	if winner == b {
		w, lo = pb, pa
	}
	w.Score++
	w.Eliminated = false
	lo.Eliminated = true

	res := Result{
		Winner:      w.Account,
		Loser:       lo.Account,
		WinnerScore: w.Score,
	}

	half := uint32(len(g.Players) / 2)
	if w.Score >= half {
		account := w.Account
		g.Ended = true
		g.Winner = &account
		g.Round++
		res.Ended = true
		res.RoundAdvanced = true
	} else if advancedCount(g) >= half {
		g.Round++
		res.RoundAdvanced = true
	}
	res.Round = g.Round
	return res, nil
}

// advancedCount is the number of players who already won in the current
// round.
func advancedCount(g *core.Game) uint32 {
	var n uint32
	for _, p := range g.Players {
		if p.Score > g.Round {
			n++
		}
	}
	return n
}
