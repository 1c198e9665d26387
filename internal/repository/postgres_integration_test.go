//go:build integration
// +build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-settlement/internal/payment"
	"github.com/yourorg/payment-settlement/internal/repository"
)

func setupPostgres(t *testing.T) *repository.PostgresRepository {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := repository.NewPostgresDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewPostgresRepository(db)
	require.NoError(t, repo.Migrate(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE payments RESTART IDENTITY`)
	require.NoError(t, err)
	return repo
}

func TestPostgresRepository_Lifecycle(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	pgOrderID := fmt.Sprintf("NICE_%d_itest", time.Now().UnixMilli())
	p := newPending(t, pgOrderID, "u1", time.Now().UTC().Truncate(time.Microsecond))
	p.Metadata = map[string]any{"channel": "web"}
	require.NoError(t, repo.Save(ctx, p))
	require.NotZero(t, p.ID)
	assert.Equal(t, int64(1), p.Version)

	assert.ErrorIs(t, repo.Save(ctx, newPending(t, pgOrderID, "u2", time.Now())), repository.ErrDuplicatePgOrderID)

	stale, err := repo.FindByPgOrderID(ctx, pgOrderID)
	require.NoError(t, err)
	assert.Equal(t, "web", stale.Metadata["channel"])

	require.NoError(t, p.AttachOrder("order-1"))
	require.NoError(t, p.Approve("tid-1", "tok", "0000"))
	require.NoError(t, repo.Save(ctx, p))
	assert.Equal(t, int64(2), p.Version)

	require.NoError(t, stale.Fail("", "late"))
	assert.ErrorIs(t, repo.Save(ctx, stale), repository.ErrStaleVersion)

	got, err := repo.FindByPgTid(ctx, "tid-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSucceed, got.Status)
	assert.Equal(t, "order-1", got.OrderID)
	require.NotNil(t, got.ApprovedAt)
	assert.Nil(t, got.FailedAt)

	byUser, err := repo.FindByUserIDAndStatus(ctx, "u1", payment.StatusSucceed)
	require.NoError(t, err)
	require.Len(t, byUser, 1)

	_, err = repo.FindByID(ctx, p.ID+1000)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, repo.Ping(ctx))
}
