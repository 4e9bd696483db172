package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackfolio/basketd/service/basket"
)

func TestRunLifecycle(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	t.Run("start run", func(t *testing.T) {
		err := store.StartRun(ctx, basket.RunRecord{
			RunID:    "wallet1-1",
			Wallet:   "wallet1",
			BasketID: "mag7",
			Mode:     basket.ModeOnce,
			TotalUSD: 500,
			Total:    7,
		})
		require.NoError(t, err)

		run, confs, err := store.GetRun(ctx, "wallet1-1")
		require.NoError(t, err)
		assert.Equal(t, "wallet1", run.Wallet)
		assert.Equal(t, "mag7", run.BasketID)
		assert.Equal(t, basket.ModeOnce, run.Mode)
		assert.Equal(t, 500.0, run.TotalUSD)
		assert.Equal(t, 7, run.Total)
		assert.Equal(t, basket.RunStatus("in_progress"), run.Status)
		assert.Nil(t, run.Error)
		assert.Nil(t, run.CompletedAt)
		assert.Empty(t, confs)
		assert.WithinDuration(t, time.Now(), run.CreatedAt, 5*time.Second)
	})

	t.Run("confirmations kept in step order", func(t *testing.T) {
		require.NoError(t, store.RecordConfirmation(ctx, "wallet1-1", 0, "mintA", "sigA"))
		require.NoError(t, store.RecordConfirmation(ctx, "wallet1-1", 1, "mintB", "sigB"))

		_, confs, err := store.GetRun(ctx, "wallet1-1")
		require.NoError(t, err)
		require.Len(t, confs, 2)
		assert.Equal(t, 0, confs[0].Seq)
		assert.Equal(t, "mintA", confs[0].AssetMint)
		assert.Equal(t, "sigA", confs[0].ConfirmationID)
		assert.Equal(t, 1, confs[1].Seq)
		assert.Equal(t, "sigB", confs[1].ConfirmationID)
	})

	t.Run("complete run with partial failure", func(t *testing.T) {
		err := store.CompleteRun(ctx, "wallet1-1", basket.RunPartial, "submission failed for NVDA")
		require.NoError(t, err)

		run, _, err := store.GetRun(ctx, "wallet1-1")
		require.NoError(t, err)
		assert.Equal(t, basket.RunPartial, run.Status)
		require.NotNil(t, run.Error)
		assert.Equal(t, "submission failed for NVDA", *run.Error)
		require.NotNil(t, run.CompletedAt)
	})

	t.Run("complete succeeded run clears no error", func(t *testing.T) {
		require.NoError(t, store.StartRun(ctx, basket.RunRecord{
			RunID: "wallet1-2", Wallet: "wallet1", Mode: basket.ModeDCA, TotalUSD: 120, Total: 4,
		}))
		require.NoError(t, store.CompleteRun(ctx, "wallet1-2", basket.RunSucceeded, ""))

		run, _, err := store.GetRun(ctx, "wallet1-2")
		require.NoError(t, err)
		assert.Equal(t, basket.RunSucceeded, run.Status)
		assert.Nil(t, run.Error)
	})

	t.Run("complete unknown run fails", func(t *testing.T) {
		err := store.CompleteRun(ctx, "nope-1", basket.RunFailed, "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("get unknown run fails", func(t *testing.T) {
		_, _, err := store.GetRun(ctx, "nope-2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("restart collision supersedes stale run", func(t *testing.T) {
		// Run tokens reseed when the process restarts; the same ID must
		// reset the row and drop the old run's steps.
		err := store.StartRun(ctx, basket.RunRecord{
			RunID:    "wallet1-1",
			Wallet:   "wallet1",
			BasketID: "ai-chips",
			Mode:     basket.ModeOnce,
			TotalUSD: 250,
			Total:    3,
		})
		require.NoError(t, err)

		run, confs, err := store.GetRun(ctx, "wallet1-1")
		require.NoError(t, err)
		assert.Equal(t, "ai-chips", run.BasketID)
		assert.Equal(t, 250.0, run.TotalUSD)
		assert.Equal(t, basket.RunStatus("in_progress"), run.Status)
		assert.Nil(t, run.Error)
		assert.Nil(t, run.CompletedAt)
		assert.Empty(t, confs)
	})
}

func TestListRuns(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	for i, rec := range []basket.RunRecord{
		{RunID: "w1-1", Wallet: "w1", BasketID: "mag7", Mode: basket.ModeOnce, TotalUSD: 100, Total: 7},
		{RunID: "w1-2", Wallet: "w1", BasketID: "ai-chips", Mode: basket.ModeDCA, TotalUSD: 200, Total: 4},
		{RunID: "w2-1", Wallet: "w2", BasketID: "mag7", Mode: basket.ModeOnce, TotalUSD: 50, Total: 7},
	} {
		require.NoError(t, store.StartRun(ctx, rec), "record %d", i)
	}

	t.Run("filter by wallet", func(t *testing.T) {
		runs, err := store.ListRuns(ctx, ListRunsParams{Wallet: "w1"})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		for _, r := range runs {
			assert.Equal(t, "w1", r.Wallet)
		}
	})

	t.Run("all wallets", func(t *testing.T) {
		runs, err := store.ListRuns(ctx, ListRunsParams{})
		require.NoError(t, err)
		assert.Len(t, runs, 3)
	})

	t.Run("pagination", func(t *testing.T) {
		runs, err := store.ListRuns(ctx, ListRunsParams{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, runs, 2)

		rest, err := store.ListRuns(ctx, ListRunsParams{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, rest, 1)
	})

	t.Run("empty wallet has no runs", func(t *testing.T) {
		runs, err := store.ListRuns(ctx, ListRunsParams{Wallet: "w3"})
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}
