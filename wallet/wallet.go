package wallet

import (
	"github.com/tolelom/tolbracket/core"
	"github.com/tolelom/tolbracket/crypto"
)

// Wallet holds a key pair and provides transaction-building helpers. Every
// builder takes the account's current nonce.
type Wallet struct {
	priv    crypto.PrivateKey
	pub     crypto.PublicKey
	chainID string
}

// New creates a Wallet from an existing private key that signs for chainID.
func New(priv crypto.PrivateKey, chainID string) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public(), chainID: chainID}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate(chainID string) (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv, chainID), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key (used as "from" address).
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// NewTx creates a signed transaction.
func (w *Wallet) NewTx(typ core.TxType, nonce, fee uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(w.chainID, typ, w.pub.Hex(), nonce, fee, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// Transfer creates a signed transfer transaction.
func (w *Wallet) Transfer(to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxTransfer, nonce, fee, core.TransferPayload{To: to, Amount: amount})
}

// CreateTournament opens a tournament funded with reward from this wallet.
func (w *Wallet) CreateTournament(capacity uint32, reward, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxCreateTournament, nonce, fee, core.CreateTournamentPayload{
		Capacity: capacity,
		Reward:   reward,
	})
}

// Register signs up this wallet for tournament id.
func (w *Wallet) Register(id uint32, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxRegister, nonce, fee, core.RegisterPayload{TournamentID: id})
}

// SetStatus overrides the lifecycle flags of tournament id.
func (w *Wallet) SetStatus(id uint32, started, ended bool, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxSetStatus, nonce, fee, core.SetStatusPayload{
		TournamentID: id,
		Started:      started,
		Ended:        ended,
	})
}

// ReportResult reports that winner beat the other of a and b.
func (w *Wallet) ReportResult(id uint32, a, b, winner string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxReportResult, nonce, fee, core.ReportResultPayload{
		TournamentID: id,
		PlayerA:      a,
		PlayerB:      b,
		Winner:       winner,
	})
}

// ClaimReward claims the reward pool of tournament id.
func (w *Wallet) ClaimReward(id uint32, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxClaimReward, nonce, fee, core.ClaimRewardPayload{TournamentID: id})
}
