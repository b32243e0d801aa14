// Package indexer maintains secondary indexes over committed transactions so
// clients can find a player's tournaments without scanning every game.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/events"
	"github.com/tolelom/tolbracket/storage"
)

const (
	prefixPlayerGames = "idx:player:game:"
	prefixWinnerGames = "idx:winner:game:"
)

// Indexer subscribes to ledger events and updates secondary lookup tables.
// Events are only emitted for committed transactions, so the indexes never
// reference a reverted write.
type Indexer struct {
	db storage.DB
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db}
	emitter.Subscribe(events.EventPlayerRegistered, idx.onPlayerRegistered)
	emitter.Subscribe(events.EventTournamentEnded, idx.onTournamentEnded)
	return idx
}

// GamesByPlayer returns the ids of every tournament player registered for,
// in registration order.
func (idx *Indexer) GamesByPlayer(player string) ([]uint32, error) {
	return idx.getList(prefixPlayerGames + player)
}

// GamesWonBy returns the ids of every tournament player won.
func (idx *Indexer) GamesWonBy(player string) ([]uint32, error) {
	return idx.getList(prefixWinnerGames + player)
}

// ---- event handlers ----

func (idx *Indexer) onPlayerRegistered(ev events.Event) {
	id, ok1 := ev.Data["tournament_id"].(uint32)
	player, ok2 := ev.Data["player"].(string)
	if !ok1 || !ok2 || player == "" {
		return
	}
	idx.add(prefixPlayerGames+player, id)
}

func (idx *Indexer) onTournamentEnded(ev events.Event) {
	id, ok1 := ev.Data["tournament_id"].(uint32)
	winner, ok2 := ev.Data["winner"].(string)
	if !ok1 || !ok2 || winner == "" {
		return
	}
	idx.add(prefixWinnerGames+winner, id)
}

func (idx *Indexer) add(key string, id uint32) {
	if err := idx.addToList(key, id); err != nil {
		logrus.WithError(err).WithField("key", key).Error("indexer update failed")
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]uint32, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []uint32
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key string, id uint32) error {
	ids, err := idx.getList(key)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	data, err := json.Marshal(append(ids, id))
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
