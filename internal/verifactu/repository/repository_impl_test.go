package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/verifactutest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func snowflakeID(i int) snowflake.ID {
	return snowflake.ID(1000 + i)
}

func registration(inv *domain.Invoice, index int64, hash string) domain.InvoiceRegistration {
	return domain.InvoiceRegistration{
		InvoiceID:       inv.ID,
		UserID:          inv.UserID,
		Status:          domain.StatusRegistered,
		ExternalID:      "VTEST-1",
		CSV:             "ABCDEF0123456789",
		QRCode:          "data:image/png;base64,AA==",
		Signature:       "sig",
		Hash:            hash,
		PreviousHash:    "prev",
		ChainIndex:      index,
		RegisteredAt:    now,
		URL:             "https://example.test/" + hash,
		SoftwareNIF:     "B12345678",
		SoftwareName:    "Anclora Flow",
		SoftwareVersion: "1.0.0",
	}
}

func TestFindConfigMissingReturnsNil(t *testing.T) {
	conn := verifactutest.NewDB(t)
	r := Provide()

	cfg, err := r.FindConfig(context.Background(), conn, uuid.New(), true)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestFindInvoiceIsScopedToUser(t *testing.T) {
	conn := verifactutest.NewDB(t)
	r := Provide()
	owner := uuid.New()
	inv := verifactutest.SeedInvoice(t, conn, owner, "F-1", "100.00")

	found, err := r.FindInvoice(context.Background(), conn, inv.ID, owner, true)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "F-1", found.InvoiceNumber)
	assert.Equal(t, "100.00", found.Total.StringFixed(2))

	other, err := r.FindInvoice(context.Background(), conn, inv.ID, uuid.New(), false)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestAdvanceChainIsGuardedByExpectedIndex(t *testing.T) {
	conn := verifactutest.NewDB(t)
	r := Provide()
	userID := uuid.New()
	verifactutest.SeedConfig(t, conn, userID)
	ctx := context.Background()

	ok, err := r.AdvanceChain(ctx, conn, userID, 0, 1, "h1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.AdvanceChain(ctx, conn, userID, 0, 1, "stale", now)
	require.NoError(t, err)
	assert.False(t, ok)

	cfg := verifactutest.LoadConfig(t, conn, userID)
	assert.Equal(t, int64(1), cfg.LastChainIndex)
	require.NotNil(t, cfg.LastChainHash)
	assert.Equal(t, "h1", *cfg.LastChainHash)
}

func TestMarkRegisteredWritesChainPositionOnce(t *testing.T) {
	conn := verifactutest.NewDB(t)
	r := Provide()
	userID := uuid.New()
	inv := verifactutest.SeedInvoice(t, conn, userID, "F-1", "100.00")
	ctx := context.Background()

	ok, err := r.MarkRegistered(ctx, conn, registration(inv, 1, "h1"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.MarkRegistered(ctx, conn, registration(inv, 2, "h2"))
	require.NoError(t, err)
	assert.False(t, ok)

	got := verifactutest.LoadInvoice(t, conn, inv.ID)
	assert.Equal(t, domain.StatusRegistered, got.VerifactuStatus)
	require.NotNil(t, got.VerifactuChainIndex)
	assert.Equal(t, int64(1), *got.VerifactuChainIndex)
	assert.Equal(t, "h1", *got.VerifactuHash)
	assert.Nil(t, got.VerifactuErrorMessage)
}

func TestChainIndexIsUniquePerUser(t *testing.T) {
	conn := verifactutest.NewDB(t)
	r := Provide()
	userID := uuid.New()
	first := verifactutest.SeedInvoice(t, conn, userID, "F-1", "100.00")
	second := verifactutest.SeedInvoice(t, conn, userID, "F-2", "100.00")
	ctx := context.Background()

	_, err := r.MarkRegistered(ctx, conn, registration(first, 1, "h1"))
	require.NoError(t, err)
	_, err = r.MarkRegistered(ctx, conn, registration(second, 1, "h2"))
	assert.Error(t, err)

	otherUser := verifactutest.SeedInvoice(t, conn, uuid.New(), "F-1", "100.00")
	ok, err := r.MarkRegistered(ctx, conn, registration(otherUser, 1, "h3"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAnnotateErrorNeverDowngradesFinalStates(t *testing.T) {
	conn := verifactutest.NewDB(t)
	r := Provide()
	userID := uuid.New()
	ctx := context.Background()

	pending := verifactutest.SeedInvoice(t, conn, userID, "F-1", "10.00")
	registered := verifactutest.SeedInvoice(t, conn, userID, "F-2", "10.00", func(inv *domain.Invoice) {
		inv.VerifactuStatus = domain.StatusRegistered
	})
	cancelled := verifactutest.SeedInvoice(t, conn, userID, "F-3", "10.00", func(inv *domain.Invoice) {
		inv.VerifactuStatus = domain.StatusCancelled
	})

	for _, inv := range []*domain.Invoice{pending, registered, cancelled} {
		require.NoError(t, r.AnnotateError(ctx, conn, inv.ID, userID, "boom", now))
	}

	got := verifactutest.LoadInvoice(t, conn, pending.ID)
	assert.Equal(t, domain.StatusError, got.VerifactuStatus)
	require.NotNil(t, got.VerifactuErrorMessage)
	assert.Equal(t, "boom", *got.VerifactuErrorMessage)

	assert.Equal(t, domain.StatusRegistered, verifactutest.LoadInvoice(t, conn, registered.ID).VerifactuStatus)
	assert.Equal(t, domain.StatusCancelled, verifactutest.LoadInvoice(t, conn, cancelled.ID).VerifactuStatus)
}

func TestMarkCancelledOnlyAffectsRegistered(t *testing.T) {
	conn := verifactutest.NewDB(t)
	r := Provide()
	userID := uuid.New()
	ctx := context.Background()

	inv := verifactutest.SeedInvoice(t, conn, userID, "F-1", "10.00")
	_, err := r.MarkRegistered(ctx, conn, registration(inv, 1, "h1"))
	require.NoError(t, err)
	require.NoError(t, r.MarkCancelled(ctx, conn, inv.ID, userID, now))

	got := verifactutest.LoadInvoice(t, conn, inv.ID)
	assert.Equal(t, domain.StatusCancelled, got.VerifactuStatus)
	assert.Equal(t, domain.InvoiceStatusCancelled, got.Status)
	assert.Equal(t, int64(1), *got.VerifactuChainIndex)
}

func TestListPendingFiltersAndOrders(t *testing.T) {
	conn := verifactutest.NewDB(t)
	r := Provide()
	userID := uuid.New()

	later := verifactutest.SeedInvoice(t, conn, userID, "F-2", "10.00", func(inv *domain.Invoice) {
		inv.IssueDate = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	})
	earlier := verifactutest.SeedInvoice(t, conn, userID, "F-1", "10.00")
	verifactutest.SeedInvoice(t, conn, userID, "F-3", "10.00", func(inv *domain.Invoice) { inv.Status = domain.InvoiceStatusDraft })
	verifactutest.SeedInvoice(t, conn, userID, "F-4", "10.00", func(inv *domain.Invoice) { inv.VerifactuEnabled = false })
	verifactutest.SeedInvoice(t, conn, userID, "F-5", "10.00", func(inv *domain.Invoice) { inv.VerifactuStatus = domain.StatusError })
	verifactutest.SeedInvoice(t, conn, uuid.New(), "F-6", "10.00")

	items, err := r.ListPending(context.Background(), conn, userID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, earlier.ID, items[0].ID)
	assert.Equal(t, later.ID, items[1].ID)
}

func TestStatistics(t *testing.T) {
	conn := verifactutest.NewDB(t)
	r := Provide()
	userID := uuid.New()
	ctx := context.Background()

	a := verifactutest.SeedInvoice(t, conn, userID, "F-1", "10.00")
	verifactutest.SeedInvoice(t, conn, userID, "F-2", "10.00")
	verifactutest.SeedInvoice(t, conn, userID, "F-3", "10.00", func(inv *domain.Invoice) { inv.VerifactuStatus = domain.StatusError })
	_, err := r.MarkRegistered(ctx, conn, registration(a, 1, "h1"))
	require.NoError(t, err)

	stats, err := r.Statistics(ctx, conn, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEnabled)
	assert.Equal(t, int64(1), stats.TotalRegistered)
	assert.Equal(t, int64(1), stats.TotalPending)
	assert.Equal(t, int64(1), stats.TotalErrors)
	assert.Equal(t, int64(1), stats.LastChainIndex)
	require.NotNil(t, stats.LastRegistration)
	assert.True(t, now.Equal(*stats.LastRegistration))

	empty, err := r.Statistics(ctx, conn, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty.TotalEnabled)
	assert.Nil(t, empty.LastRegistration)
}

func TestListLogsJoinsInvoiceNumberAndPaginates(t *testing.T) {
	conn := verifactutest.NewDB(t)
	r := Provide()
	userID := uuid.New()
	ctx := context.Background()
	inv := verifactutest.SeedInvoice(t, conn, userID, "F-1", "10.00")

	for i := 1; i <= 3; i++ {
		require.NoError(t, r.InsertLog(ctx, conn, &domain.Log{
			ID:        snowflakeID(i),
			InvoiceID: inv.ID,
			UserID:    userID,
			Action:    domain.LogActionRegister,
			Status:    domain.LogStatusSuccess,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	logs, err := r.ListLogs(ctx, conn, domain.LogFilter{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, snowflakeID(3), logs[0].ID)
	assert.Equal(t, "F-1", logs[0].InvoiceNumber)

	next, err := r.ListLogs(ctx, conn, domain.LogFilter{
		UserID: userID,
		Limit:  2,
		Cursor: &domain.LogCursor{ID: int64(logs[1].ID), CreatedAt: logs[1].CreatedAt},
	})
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, snowflakeID(1), next[0].ID)
}
