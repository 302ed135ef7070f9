package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/banking-core/internal/domain"
	"github.com/josh-kwaku/banking-core/internal/repository"
	"github.com/josh-kwaku/banking-core/internal/testutil"
)

func newRecord(ref, from, to string, amount int64) *domain.TransferRecord {
	return &domain.TransferRecord{
		Reference:     ref,
		FromAccount:   from,
		ToAccount:     to,
		Amount:        decimal.NewFromInt(amount),
		Status:        domain.TransferStatusSuccess,
		Type:          domain.TransferTypeInternal,
		TransferredOn: time.Now().UTC(),
	}
}

func TestTransferRepository_CreateWithEventIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.SchemaTransfers)
	transfers := repository.NewTransferRepository(db)
	ctx := context.Background()

	rec := newRecord("ref-1", "A", "B", 2000)
	ev, err := domain.NewTransferEvent(rec)
	require.NoError(t, err)

	stored, created, err := transfers.CreateWithEvent(ctx, rec, ev)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ref-1", stored.Reference)

	again, err := domain.NewTransferEvent(rec)
	require.NoError(t, err)
	stored, created, err = transfers.CreateWithEvent(ctx, newRecord("ref-1", "A", "B", 2000), again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, decimal.NewFromInt(2000).Equal(stored.Amount))

	assert.Equal(t, 1, testutil.CountTransfers(t, db, "ref-1"))

	events := testutil.OutboxEvents(t, db, "ref-1")
	require.Len(t, events, 1, "a replayed record must not enqueue a second event")
	assert.Equal(t, domain.EventTransferCompleted, events[0].EventType)
}

func TestTransferRepository_Reads(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.SchemaTransfers)
	repo := repository.NewTransferRepository(db)
	ctx := context.Background()

	_, _, err := repo.CreateWithEvent(ctx, newRecord("ref-1", "A", "B", 10), nil)
	require.NoError(t, err)
	_, _, err = repo.CreateWithEvent(ctx, newRecord("ref-2", "B", "C", 5), nil)
	require.NoError(t, err)

	deposit := newRecord("ref-3", "", "B", 7)
	deposit.Type = domain.TransferTypeExternal
	_, _, err = repo.CreateWithEvent(ctx, deposit, nil)
	require.NoError(t, err)

	got, err := repo.GetByReference(ctx, "ref-3")
	require.NoError(t, err)
	assert.Empty(t, got.FromAccount)
	assert.Equal(t, "B", got.ToAccount)

	forB, err := repo.ListByAccount(ctx, "B")
	require.NoError(t, err)
	require.Len(t, forB, 3)
	assert.Equal(t, []string{"ref-1", "ref-2", "ref-3"}, []string{forB[0].Reference, forB[1].Reference, forB[2].Reference})

	none, err := repo.ListByAccount(ctx, "Z")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = repo.GetByReference(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestOutboxRepository_ProcessPending(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.SchemaTransfers)
	transfers := repository.NewTransferRepository(db)
	outbox := repository.NewOutboxRepository(db)
	ctx := context.Background()

	for _, ref := range []string{"ok", "flaky"} {
		rec := newRecord(ref, "A", "B", 1)
		ev, err := domain.NewTransferEvent(rec)
		require.NoError(t, err)
		_, _, err = transfers.CreateWithEvent(ctx, rec, ev)
		require.NoError(t, err)
	}

	publish := func(e domain.OutboxEvent) error {
		if e.AggregateID == "flaky" {
			return errors.New("broker down")
		}
		return nil
	}

	n, err := outbox.ProcessPending(ctx, 10, 2, publish)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	flaky := testutil.OutboxEvents(t, db, "flaky")
	assert.Equal(t, domain.OutboxStatusPending, flaky[0].Status)
	assert.Equal(t, 1, flaky[0].Attempts)

	n, err = outbox.ProcessPending(ctx, 10, 2, publish)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	flaky = testutil.OutboxEvents(t, db, "flaky")
	assert.Equal(t, domain.OutboxStatusFailed, flaky[0].Status)

	ok := testutil.OutboxEvents(t, db, "ok")
	assert.Equal(t, domain.OutboxStatusPublished, ok[0].Status)
	assert.NotNil(t, ok[0].PublishedAt)
}
