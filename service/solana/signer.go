package solana

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// LocalWallet is a keypair-backed signing capability. It implements
// basket.Wallet: batch signing is one loop over the transactions, so both
// capability flags are true.
//
// Transactions cross the interface as raw bytes; deserialization and
// re-serialization happen here so the orchestration core never touches
// ledger-specific types.
type LocalWallet struct {
	key solana.PrivateKey
}

// NewLocalWallet creates a wallet from a base58-encoded private key.
func NewLocalWallet(privateKeyBase58 string) (*LocalWallet, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &LocalWallet{key: key}, nil
}

// NewLocalWalletFromKey wraps an existing private key.
func NewLocalWalletFromKey(key solana.PrivateKey) *LocalWallet {
	return &LocalWallet{key: key}
}

// Address returns the wallet's base58 public key.
func (w *LocalWallet) Address() string {
	return w.key.PublicKey().String()
}

// CanSignAll reports batch signing support.
func (w *LocalWallet) CanSignAll() bool { return true }

// CanSign reports single-transaction signing support.
func (w *LocalWallet) CanSign() bool { return true }

// Sign deserializes, signs, and re-serializes one transaction. Partial
// signing preserves signature slots held by other required signers (the
// recurring-order transactions arrive with service-side signers attached).
func (w *LocalWallet) Sign(ctx context.Context, rawTx []byte) ([]byte, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(rawTx))
	if err != nil {
		return nil, fmt.Errorf("deserialize transaction: %w", err)
	}

	pub := w.key.PublicKey()
	_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize signed transaction: %w", err)
	}
	return signed, nil
}

// SignAll signs every transaction in one batch. All-or-nothing: a failure on
// any transaction signs none, mirroring the single approval prompt a
// browser wallet shows for a batch.
func (w *LocalWallet) SignAll(ctx context.Context, rawTxs [][]byte) ([][]byte, error) {
	signed := make([][]byte, 0, len(rawTxs))
	for i, raw := range rawTxs {
		out, err := w.Sign(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		signed = append(signed, out)
	}
	return signed, nil
}
