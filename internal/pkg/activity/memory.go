package activity

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/thejerf/abtime"

	"github.com/yetuga/portal/internal/models"
	"github.com/yetuga/portal/internal/pkg/pagination"
	"github.com/yetuga/portal/internal/pkg/response"
)

// MemoryRepository keeps the newest rows in process. It serves deployments
// running without a database and tests.
type MemoryRepository struct {
	mu    sync.Mutex
	rows  []Record
	limit int
	clock abtime.AbstractTime
}

// NewMemoryRepository keeps at most limit rows; limit <= 0 keeps everything.
func NewMemoryRepository(limit int, clock abtime.AbstractTime) *MemoryRepository {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &MemoryRepository{limit: limit, clock: clock}
}

func (m *MemoryRepository) Create(_ context.Context, row *models.ActivityModel) error {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = m.clock.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, toRecord(*row))
	if m.limit > 0 && len(m.rows) > m.limit {
		m.rows = append([]Record(nil), m.rows[len(m.rows)-m.limit:]...)
	}
	return nil
}

// newestFirst returns matching rows, latest first.
func (m *MemoryRepository) newestFirst(f Filter) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.rows))
	for i := len(m.rows) - 1; i >= 0; i-- {
		if f.matches(m.rows[i]) {
			out = append(out, m.rows[i])
		}
	}
	return out
}

func (m *MemoryRepository) List(_ context.Context, f Filter, q pagination.Query) ([]Record, response.Pagination, error) {
	page, meta := pagination.Slice(m.newestFirst(f), q)
	return page, meta, nil
}

func (m *MemoryRepository) Recent(_ context.Context, limit int) ([]Record, error) {
	rows := m.newestFirst(Filter{})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// Entries returns every stored row, oldest first.
func (m *MemoryRepository) Entries() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.rows...)
}
