package vm

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/events"
)

// Context is passed to every Handler and provides access to the ledger
// state and the triggering transaction. Handlers record events with Emit;
// they are published only if the transaction commits.
type Context struct {
	State core.State
	Tx    *core.Transaction

	pending []events.Event
}

// Emit queues an event of type typ for publication after commit.
func (c *Context) Emit(typ events.EventType, data map[string]any) {
	c.pending = append(c.pending, events.Event{Type: typ, TxID: c.Tx.ID, Data: data})
}

// Receipt is returned for every committed transaction.
type Receipt struct {
	TxID      string `json:"tx_id"`
	Seq       uint64 `json:"seq"`
	StateRoot string `json:"state_root"`
}

// Executor applies transactions to the state using the global Handler
// registry. Transactions run one at a time, each as a single atomic step:
// either every write it made is committed, or none is.
type Executor struct {
	mu      sync.RWMutex
	state   core.State
	emitter *events.Emitter
	chainID string
	seq     uint64
}

// NewExecutor creates an Executor with the given state and event emitter.
// Transactions signed for any chain other than chainID are rejected.
func NewExecutor(state core.State, emitter *events.Emitter, chainID string) *Executor {
	return &Executor{state: state, emitter: emitter, chainID: chainID}
}

// ExecuteTx verifies tx, executes it against a snapshot, and commits.
// On any failure the snapshot is restored and nothing is emitted.
func (e *Executor) ExecuteTx(tx *core.Transaction) (*Receipt, error) {
	if err := tx.Verify(); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	if tx.ChainID != e.chainID {
		return nil, fmt.Errorf("chain ID mismatch: got %q want %q", tx.ChainID, e.chainID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"tx": tx.ID, "type": tx.Type, "from": tx.From})

	snapID, err := e.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	ctx, err := e.applyTx(tx)
	if err == nil {
		err = e.commit()
	}
	if err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return nil, fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		log.WithError(err).Debug("tx rejected")
		return nil, err
	}

	e.seq++
	rcpt := &Receipt{TxID: tx.ID, Seq: e.seq, StateRoot: e.state.ComputeRoot()}
	log.WithField("seq", rcpt.Seq).Info("tx committed")

	if e.emitter != nil {
		for _, ev := range ctx.pending {
			ev.Seq = rcpt.Seq
			e.emitter.Emit(ev)
		}
		e.emitter.Emit(events.Event{
			Type: events.EventTxExecuted,
			TxID: tx.ID,
			Seq:  rcpt.Seq,
			Data: map[string]any{"type": string(tx.Type), "from": tx.From},
		})
	}
	return rcpt, nil
}

// View runs fn against the committed state. Views run concurrently with
// each other but never overlap a transaction, so fn always sees a state
// between two transactions.
func (e *Executor) View(fn func(core.State) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.state)
}

// ChainID returns the chain transactions must be signed for.
func (e *Executor) ChainID() string {
	return e.chainID
}

// Seq returns the sequence number of the last committed transaction.
func (e *Executor) Seq() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq
}

func (e *Executor) commit() error {
	if err := e.state.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// applyTx deducts the fee, increments the nonce, then dispatches to the handler.
func (e *Executor) applyTx(tx *core.Transaction) (*Context, error) {
	if !globalRegistry.Has(tx.Type) {
		return nil, fmt.Errorf("vm: no handler registered for TxType %q", tx.Type)
	}
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return nil, fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	if acc.Balance < tx.Fee {
		return nil, fmt.Errorf("insufficient balance for fee: have %d need %d", acc.Balance, tx.Fee)
	}
	if acc.Nonce == math.MaxUint64 {
		return nil, errors.New("nonce overflow for account " + tx.From)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return nil, err
	}

	ctx := &Context{State: e.state, Tx: tx}
	if err := globalRegistry.Execute(tx.Type, ctx, tx.Payload); err != nil {
		return nil, err
	}
	return ctx, nil
}
