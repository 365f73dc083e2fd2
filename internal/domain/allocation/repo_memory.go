package allocation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/otsched/internal/platform/apperr"
	"github.com/ehr/otsched/internal/platform/clock"
	"github.com/ehr/otsched/pkg/pagination"
)

// MemoryRepo is the in-process allocation store. Records are copied in and
// out so callers never share state with the map.
type MemoryRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Allocation
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[uuid.UUID]*Allocation), now: time.Now}
}

func (m *MemoryRepo) Create(_ context.Context, a *Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = m.now()
	a.UpdatedAt = a.CreatedAt
	m.items[a.ID] = a.clone()
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("allocation", id)
	}
	return a.clone(), nil
}

func (m *MemoryRepo) Update(_ context.Context, a *Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[a.ID]; !ok {
		return apperr.NotFound("allocation", a.ID)
	}
	a.UpdatedAt = m.now()
	m.items[a.ID] = a.clone()
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return apperr.NotFound("allocation", id)
	}
	delete(m.items, id)
	return nil
}

func matches(a *Allocation, f Filter) bool {
	if f.RoomID != nil && a.RoomID != *f.RoomID {
		return false
	}
	if !f.Date.IsZero() && a.AllocationDate != f.Date {
		return false
	}
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.SurgeonID != nil && a.LeadSurgeonID != *f.SurgeonID {
		return false
	}
	if f.RecordStatus != "" && a.RecordStatus != f.RecordStatus {
		return false
	}
	return true
}

// sortAllocations orders by date, then creation time.
func sortAllocations(items []*Allocation) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].AllocationDate != items[j].AllocationDate {
			return items[i].AllocationDate.Before(items[j].AllocationDate)
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
}

func (m *MemoryRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Allocation, int, error) {
	m.mu.RLock()
	var items []*Allocation
	for _, a := range m.items {
		if matches(a, f) {
			items = append(items, a.clone())
		}
	}
	m.mu.RUnlock()

	sortAllocations(items)
	return pagination.Slice(items, pagination.Params{Limit: limit, Offset: offset}), len(items), nil
}

func (m *MemoryRepo) ListByRoomDate(ctx context.Context, roomID uuid.UUID, date clock.Date) ([]*Allocation, error) {
	items, _, err := m.List(ctx, Filter{RoomID: &roomID, Date: date}, 0, 0)
	return items, err
}
