// Package solana implements the ledger submission/confirmation collaborator
// and the local keypair signing capability over the solana-go RPC client.
package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/stackfolio/basketd/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real nodes.
type RPCClient interface {
	SendRawTransactionWithOpts(
		ctx context.Context,
		transaction []byte,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetBlockHeight(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (uint64, error)
}

// SubmitPolicy is the retry/timeout policy for submission and confirmation.
// It is configuration, not hardcoded behavior; the confirmation timeout
// approximates the blockhash validity window.
type SubmitPolicy struct {
	SkipPreflight  bool
	MaxRetries     uint
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// DefaultSubmitPolicy mirrors the production defaults: preflight on, up to
// three relay retries, confirmation capped at 90s polling every 2s.
func DefaultSubmitPolicy() SubmitPolicy {
	return SubmitPolicy{
		SkipPreflight:  false,
		MaxRetries:     3,
		ConfirmTimeout: 90 * time.Second,
		PollInterval:   2 * time.Second,
	}
}

// Submitter sends signed transactions and waits for network confirmation.
// It implements basket.Submitter.
type Submitter struct {
	rpc     RPCClient
	policy  SubmitPolicy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewSubmitter creates a submitter. If m is nil, no metrics are recorded.
func NewSubmitter(rpcClient RPCClient, policy SubmitPolicy, m *metrics.Metrics, logger *slog.Logger) *Submitter {
	return &Submitter{
		rpc:     rpcClient,
		policy:  policy,
		logger:  logger,
		metrics: m,
	}
}

// Submit sends a signed transaction to the ledger and returns its signature.
// The RPC node retries relaying internally up to the policy's MaxRetries.
func (s *Submitter) Submit(ctx context.Context, signedTx []byte) (string, error) {
	maxRetries := s.policy.MaxRetries
	opts := rpc.TransactionOpts{
		SkipPreflight: s.policy.SkipPreflight,
		MaxRetries:    &maxRetries,
	}

	start := time.Now()
	sig, err := s.rpc.SendRawTransactionWithOpts(ctx, signedTx, opts)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.RecordRPCCall("SendRawTransaction", status, duration)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send transaction", "error", err)
		return "", fmt.Errorf("send transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "transaction submitted", "signature", sig.String())
	return sig.String(), nil
}

// Confirm waits until the signature reaches confirmed commitment within the
// current blockhash validity context, polling signature statuses. Returns an
// error when the transaction failed on chain, the blockhash expired, or the
// policy timeout elapsed.
func (s *Submitter) Confirm(ctx context.Context, signature string) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	// Pin the confirmation wait to the current blockhash context so an
	// expired transaction surfaces as such instead of timing out silently.
	blockhashStart := time.Now()
	latest, err := s.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordRPCCall("GetLatestBlockhash", status, time.Since(blockhashStart).Seconds())
	}
	if err != nil {
		return fmt.Errorf("get latest blockhash: %w", err)
	}
	lastValidHeight := latest.Value.LastValidBlockHeight

	deadline := time.Now().Add(s.policy.ConfirmTimeout)
	attempt := 0
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("confirmation timed out after %s for %s", s.policy.ConfirmTimeout, signature)
		}

		pollStart := time.Now()
		res, err := s.rpc.GetSignatureStatuses(ctx, false, sig)
		pollDuration := time.Since(pollStart).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}
		if s.metrics != nil {
			s.metrics.RecordRPCCall("GetSignatureStatuses", status, pollDuration)
		}

		switch {
		case err != nil && strings.Contains(err.Error(), "429"):
			// Rate limited; back off harder than the normal poll interval.
			if s.metrics != nil {
				s.metrics.RecordRPCRetry("GetSignatureStatuses", "rate_limit")
			}
			s.logger.WarnContext(ctx, "rate limited while confirming",
				"signature", signature,
				"attempt", attempt+1,
			)
		case err != nil:
			if s.metrics != nil {
				s.metrics.RecordRPCRetry("GetSignatureStatuses", "error")
			}
			s.logger.WarnContext(ctx, "failed to poll signature status",
				"signature", signature,
				"attempt", attempt+1,
				"error", err,
			)
		default:
			if len(res.Value) > 0 && res.Value[0] != nil {
				st := res.Value[0]
				if st.Err != nil {
					return fmt.Errorf("transaction %s failed on chain: %v", signature, st.Err)
				}
				if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
					st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
					s.logger.DebugContext(ctx, "transaction confirmed",
						"signature", signature,
						"status", st.ConfirmationStatus,
					)
					return nil
				}
			}
			// Still pending. Check whether the blockhash window closed.
			if expired, herr := s.blockHeightExceeded(ctx, lastValidHeight); herr == nil && expired {
				return fmt.Errorf("block height exceeded for %s", signature)
			}
		}

		attempt++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.policy.PollInterval):
		}
	}
}

// blockHeightExceeded reports whether the chain has moved past the
// transaction's last valid block height.
func (s *Submitter) blockHeightExceeded(ctx context.Context, lastValidHeight uint64) (bool, error) {
	height, err := s.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return false, err
	}
	return height > lastValidHeight, nil
}
