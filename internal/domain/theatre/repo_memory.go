package theatre

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/otsched/internal/platform/apperr"
	"github.com/ehr/otsched/pkg/pagination"
)

// MemoryStore keeps rooms and slots in process. It implements both
// RoomRepository (via Rooms) and SlotRepository (via Slots).
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]OTRoom
	slots map[uuid.UUID]OTSlot
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[uuid.UUID]OTRoom),
		slots: make(map[uuid.UUID]OTSlot),
		now:   time.Now,
	}
}

func (m *MemoryStore) Rooms() RoomRepository { return memRooms{m} }
func (m *MemoryStore) Slots() SlotRepository { return memSlots{m} }

type memRooms struct{ m *MemoryStore }

func (r memRooms) Create(_ context.Context, o *OTRoom) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rooms {
		if existing.RoomNumber == o.RoomNumber {
			return apperr.Validation("room_number", "room number %s already exists", o.RoomNumber)
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = m.now()
	o.UpdatedAt = o.CreatedAt
	m.rooms[o.ID] = *o
	return nil
}

func (r memRooms) GetByID(_ context.Context, id uuid.UUID) (*OTRoom, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	o, ok := r.m.rooms[id]
	if !ok {
		return nil, apperr.NotFound("ot room", id)
	}
	return &o, nil
}

func (r memRooms) GetByNumber(_ context.Context, number string) (*OTRoom, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, o := range r.m.rooms {
		if o.RoomNumber == number {
			out := o
			return &out, nil
		}
	}
	return nil, apperr.New(apperr.ErrNotFound, "room_number", "ot room %s not found", number)
}

func (r memRooms) Update(_ context.Context, o *OTRoom) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[o.ID]; !ok {
		return apperr.NotFound("ot room", o.ID)
	}
	for id, existing := range m.rooms {
		if id != o.ID && existing.RoomNumber == o.RoomNumber {
			return apperr.Validation("room_number", "room number %s already exists", o.RoomNumber)
		}
	}
	o.UpdatedAt = m.now()
	m.rooms[o.ID] = *o
	return nil
}

func (r memRooms) List(_ context.Context, f RoomFilter, limit, offset int) ([]*OTRoom, int, error) {
	r.m.mu.RLock()
	var items []*OTRoom
	for _, o := range r.m.rooms {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Type != "" && o.Type != f.Type {
			continue
		}
		out := o
		items = append(items, &out)
	}
	r.m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].RoomNumber < items[j].RoomNumber })
	return pagination.Slice(items, pagination.Params{Limit: limit, Offset: offset}), len(items), nil
}

type memSlots struct{ m *MemoryStore }

func (r memSlots) Create(_ context.Context, s *OTSlot) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.slots {
		if existing.RoomID == s.RoomID && existing.SlotNumber == s.SlotNumber {
			return apperr.Validation("slot_number", "slot number %d already exists in this room", s.SlotNumber)
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = m.now()
	s.UpdatedAt = s.CreatedAt
	m.slots[s.ID] = *s
	return nil
}

func (r memSlots) GetByID(_ context.Context, id uuid.UUID) (*OTSlot, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	s, ok := r.m.slots[id]
	if !ok {
		return nil, apperr.NotFound("ot slot", id)
	}
	return &s, nil
}

func (r memSlots) Update(_ context.Context, s *OTSlot) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[s.ID]; !ok {
		return apperr.NotFound("ot slot", s.ID)
	}
	for id, existing := range m.slots {
		if id != s.ID && existing.RoomID == s.RoomID && existing.SlotNumber == s.SlotNumber {
			return apperr.Validation("slot_number", "slot number %d already exists in this room", s.SlotNumber)
		}
	}
	s.UpdatedAt = m.now()
	m.slots[s.ID] = *s
	return nil
}

func (r memSlots) ListByRoom(_ context.Context, roomID uuid.UUID) ([]*OTSlot, error) {
	r.m.mu.RLock()
	items := []*OTSlot{}
	for _, s := range r.m.slots {
		if s.RoomID == roomID {
			out := s
			items = append(items, &out)
		}
	}
	r.m.mu.RUnlock()
	SortSlots(items)
	return items, nil
}

func (r memSlots) CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error) {
	items, _ := r.ListByRoom(ctx, roomID)
	return len(items), nil
}

// SortSlots orders slots by start time, then slot number.
func SortSlots(items []*OTSlot) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].StartTime != items[j].StartTime {
			return items[i].StartTime < items[j].StartTime
		}
		return items[i].SlotNumber < items[j].SlotNumber
	})
}
