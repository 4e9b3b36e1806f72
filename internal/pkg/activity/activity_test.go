package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yetuga/portal/internal/models"
	"github.com/yetuga/portal/internal/pkg/pagination"
	"github.com/yetuga/portal/internal/pkg/response"
)

func TestRecorderFillsClientFromContext(t *testing.T) {
	repo := NewMemoryRepository(0, nil)
	rec := NewRecorder(repo, nil)

	ctx := WithClient(context.Background(), Client{IP: "203.0.113.5", UserAgent: "curl/8"})
	rec.Log(ctx, Entry{UserID: 7, Action: ActionLogin, Details: "User logged in"})
	rec.Log(ctx, Entry{UserID: 7, Action: ActionPageAccess, IPAddress: "198.51.100.1"})

	rows := repo.Entries()
	require.Len(t, rows, 2)
	assert.Equal(t, "203.0.113.5", rows[0].IPAddress)
	assert.Equal(t, "curl/8", rows[0].UserAgent)
	assert.NotEmpty(t, rows[0].ID)
	assert.Equal(t, "198.51.100.1", rows[1].IPAddress, "explicit address wins")
}

type failingRepo struct{ MemoryRepository }

func (*failingRepo) Create(context.Context, *models.ActivityModel) error {
	return errors.New("table locked")
}

func TestRecorderFallsBackToProcessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := NewRecorder(&failingRepo{}, zap.New(core))

	rec.Log(context.Background(), Entry{UserID: 3, Action: ActionLogout})

	entries := logs.FilterMessage("activity log write failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "logout", entries[0].ContextMap()["action"])
	assert.Equal(t, 1, logs.FilterMessage("activity").Len())
}

func TestRecorderMirrorsStoredEntries(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	repo := NewMemoryRepository(0, abtime.NewManual())
	rec := NewRecorder(repo, zap.New(core))

	rec.Log(context.Background(), Entry{UserID: 4, Action: ActionLogin, Details: "User logged in successfully"})

	require.Len(t, repo.Entries(), 1)
	mirrored := logs.FilterMessage("activity").All()
	require.Len(t, mirrored, 1)
	assert.Equal(t, int64(4), mirrored[0].ContextMap()["user_id"])
	assert.Equal(t, "login", mirrored[0].ContextMap()["action"])
}

func TestRecorderWithoutRepository(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := NewRecorder(nil, zap.New(core))

	rec.Log(context.Background(), Entry{UserID: 1, Action: ActionLogin})
	assert.Equal(t, 1, logs.FilterMessage("activity").Len())

	rows, meta, err := rec.List(context.Background(), Filter{}, pagination.Query{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, response.Pagination{CurrentPage: 1, Size: 10}, meta)
}

func TestMemoryRepositoryListing(t *testing.T) {
	clock := abtime.NewManual()
	repo := NewMemoryRepository(0, clock)
	rec := NewRecorder(repo, nil)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		rec.Log(ctx, Entry{UserID: i % 2, Action: ActionPageAccess})
		clock.Advance(time.Second)
	}
	rec.Log(ctx, Entry{UserID: 1, Action: ActionLogout})

	recent, err := rec.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ActionLogout, recent[0].Action)
	assert.True(t, recent[0].CreatedAt.After(recent[1].CreatedAt))

	rows, meta, err := rec.List(ctx, Filter{UserID: 1, Action: ActionPageAccess}, pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, int64(3), meta.Total)
}

func TestMemoryRepositoryLimit(t *testing.T) {
	repo := NewMemoryRepository(3, nil)
	rec := NewRecorder(repo, nil)
	for i := int64(1); i <= 5; i++ {
		rec.Log(context.Background(), Entry{UserID: i, Action: ActionLogin})
	}
	rows := repo.Entries()
	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[0].UserID)
	assert.Equal(t, int64(5), rows[2].UserID)
}
