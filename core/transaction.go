package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/tolbracket/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxTransfer         TxType = "transfer"
	TxCreateTournament TxType = "create_tournament"
	TxRegister         TxType = "register_tournament"
	TxSetStatus        TxType = "set_tournament_status"
	TxReportResult     TxType = "report_result"
	TxClaimReward      TxType = "claim_reward"
)

// Transaction is the atomic unit of work on the ledger.
// From holds the sender's full hex-encoded ed25519 public key (64 chars) and
// is the caller identity every module checks against.
// Signature covers all fields except ID and Signature.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce, fee uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Fee:       fee,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// TransferPayload transfers native tokens.
type TransferPayload struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// CreateTournamentPayload opens a tournament. Reward is debited from the
// sender and held in escrow as the reward pool.
type CreateTournamentPayload struct {
	Capacity uint32 `json:"capacity"`
	Reward   uint64 `json:"reward"`
}

// RegisterPayload registers the sender as a player.
type RegisterPayload struct {
	TournamentID uint32 `json:"tournament_id"`
}

// SetStatusPayload overrides the started/ended flags of a tournament.
type SetStatusPayload struct {
	TournamentID uint32 `json:"tournament_id"`
	Started      bool   `json:"started"`
	Ended        bool   `json:"ended"`
}

// ReportResultPayload reports the outcome of one match.
type ReportResultPayload struct {
	TournamentID uint32 `json:"tournament_id"`
	PlayerA      string `json:"player_a"`
	PlayerB      string `json:"player_b"`
	Winner       string `json:"winner"`
}

// ClaimRewardPayload pays the reward pool to the sender if they won.
type ClaimRewardPayload struct {
	TournamentID uint32 `json:"tournament_id"`
}
