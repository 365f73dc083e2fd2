package theatre

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/otsched/internal/platform/apperr"
	"github.com/ehr/otsched/internal/platform/clock"
	"github.com/ehr/otsched/internal/platform/db"
)

type Service struct {
	rooms  RoomRepository
	slots  SlotRepository
	tx     db.TxRunner
	logger zerolog.Logger
}

func NewService(rooms RoomRepository, slots SlotRepository, tx db.TxRunner, logger zerolog.Logger) *Service {
	if tx == nil {
		tx = db.NoTx{}
	}
	return &Service{rooms: rooms, slots: slots, tx: tx, logger: logger}
}

// -- OT Room --

func validateWindow(start, end clock.TimeOfDay) error {
	if !start.Valid() || !end.Valid() {
		return apperr.Validation("start_time", "times must fall within a single day")
	}
	if start >= end {
		return apperr.Validation("end_time", "end_time %s must be after start_time %s", end, start)
	}
	return nil
}

func validateRoom(r *OTRoom) error {
	if strings.TrimSpace(r.RoomNumber) == "" {
		return apperr.MissingField("room_number")
	}
	if strings.TrimSpace(r.Name) == "" {
		return apperr.MissingField("name")
	}
	if !RoomTypes[r.Type] {
		return apperr.Validation("type", "invalid room type: %s", r.Type)
	}
	if r.Status != StatusActive && r.Status != StatusInactive {
		return apperr.Validation("status", "invalid status: %s", r.Status)
	}
	return validateWindow(r.StartTime, r.EndTime)
}

func (s *Service) CreateRoom(ctx context.Context, r *OTRoom) error {
	r.RoomNumber = strings.TrimSpace(r.RoomNumber)
	if r.Type == "" {
		r.Type = "General"
	}
	if r.Status == "" {
		r.Status = StatusActive
	}
	if err := validateRoom(r); err != nil {
		return err
	}
	if err := s.rooms.Create(ctx, r); err != nil {
		return err
	}
	s.logger.Info().Str("room_id", r.ID.String()).Str("room_number", r.RoomNumber).Msg("ot room created")
	return nil
}

func (s *Service) GetRoom(ctx context.Context, id uuid.UUID) (*OTRoom, error) {
	return s.rooms.GetByID(ctx, id)
}

func (s *Service) ListRooms(ctx context.Context, f RoomFilter, limit, offset int) ([]*OTRoom, int, error) {
	if f.Status != "" && f.Status != StatusActive && f.Status != StatusInactive {
		return nil, 0, apperr.Validation("status", "invalid status: %s", f.Status)
	}
	return s.rooms.List(ctx, f, limit, offset)
}

// UpdateRoom applies p. Room number and operating window are frozen once
// the room has slots; descriptive fields and status stay editable.
func (s *Service) UpdateRoom(ctx context.Context, id uuid.UUID, p RoomPatch) (*OTRoom, error) {
	r, err := s.rooms.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	structural := (p.RoomNumber != nil && strings.TrimSpace(*p.RoomNumber) != r.RoomNumber) ||
		(p.StartTime != nil && *p.StartTime != r.StartTime) ||
		(p.EndTime != nil && *p.EndTime != r.EndTime)
	if structural {
		n, err := s.slots.CountByRoom(ctx, id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, apperr.Validation("room_number", "room number and operating window cannot change once the room has slots")
		}
	}

	if p.RoomNumber != nil {
		r.RoomNumber = strings.TrimSpace(*p.RoomNumber)
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = p.Description
	}
	if p.StartTime != nil {
		r.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		r.EndTime = *p.EndTime
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if err := validateRoom(r); err != nil {
		return nil, err
	}
	if err := s.rooms.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeactivateRoom is the only way to retire a room; rooms are never deleted.
func (s *Service) DeactivateRoom(ctx context.Context, id uuid.UUID) (*OTRoom, error) {
	inactive := StatusInactive
	r, err := s.UpdateRoom(ctx, id, RoomPatch{Status: &inactive})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("room_id", id.String()).Msg("ot room deactivated")
	return r, nil
}

// -- OT Slot --

func (s *Service) activeRoom(ctx context.Context, id uuid.UUID) (*OTRoom, error) {
	r, err := s.rooms.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.IsActive() {
		return nil, apperr.Validation("room_id", "ot room %s is inactive", r.RoomNumber)
	}
	return r, nil
}

func validateSlot(r *OTRoom, sl *OTSlot) error {
	if sl.SlotNumber < 1 {
		return apperr.Validation("slot_number", "slot_number must be positive")
	}
	if sl.Status != StatusActive && sl.Status != StatusInactive {
		return apperr.Validation("status", "invalid status: %s", sl.Status)
	}
	if err := validateWindow(sl.StartTime, sl.EndTime); err != nil {
		return err
	}
	if sl.StartTime < r.StartTime || sl.EndTime > r.EndTime {
		return apperr.Validation("start_time", "slot %s-%s is outside the room window %s-%s",
			sl.StartTime, sl.EndTime, r.StartTime, r.EndTime)
	}
	return nil
}

func nextSlotNumber(existing []*OTSlot) int {
	n := 0
	for _, sl := range existing {
		if sl.SlotNumber > n {
			n = sl.SlotNumber
		}
	}
	return n + 1
}

// CreateSlot adds a slot to an active room. A zero slot number is assigned
// the next free number.
func (s *Service) CreateSlot(ctx context.Context, roomID uuid.UUID, sl *OTSlot) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.activeRoom(ctx, roomID)
		if err != nil {
			return err
		}
		sl.RoomID = roomID
		if sl.Status == "" {
			sl.Status = StatusActive
		}
		if sl.SlotNumber == 0 {
			existing, err := s.slots.ListByRoom(ctx, roomID)
			if err != nil {
				return err
			}
			sl.SlotNumber = nextSlotNumber(existing)
		}
		if err := validateSlot(r, sl); err != nil {
			return err
		}
		return s.slots.Create(ctx, sl)
	})
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*OTSlot, error) {
	return s.slots.GetByID(ctx, id)
}

func (s *Service) ListSlotsByRoom(ctx context.Context, roomID uuid.UUID) ([]*OTSlot, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	return s.slots.ListByRoom(ctx, roomID)
}

func (s *Service) UpdateSlot(ctx context.Context, id uuid.UUID, p SlotPatch) (*OTSlot, error) {
	sl, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := s.rooms.GetByID(ctx, sl.RoomID)
	if err != nil {
		return nil, err
	}
	if p.SlotNumber != nil {
		sl.SlotNumber = *p.SlotNumber
	}
	if p.StartTime != nil {
		sl.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		sl.EndTime = *p.EndTime
	}
	if p.Status != nil {
		sl.Status = *p.Status
	}
	if err := validateSlot(r, sl); err != nil {
		return nil, err
	}
	if err := s.slots.Update(ctx, sl); err != nil {
		return nil, err
	}
	return sl, nil
}

func (s *Service) DeactivateSlot(ctx context.Context, id uuid.UUID) (*OTSlot, error) {
	inactive := StatusInactive
	return s.UpdateSlot(ctx, id, SlotPatch{Status: &inactive})
}

// GenerateSlots cuts the room's operating window into consecutive slots of
// the given length. Ranges overlapping an existing slot are skipped and a
// trailing remainder shorter than the slot length is dropped.
func (s *Service) GenerateSlots(ctx context.Context, roomID uuid.UUID, minutes int) ([]*OTSlot, error) {
	if minutes < 5 || minutes > 720 {
		return nil, apperr.Validation("slot_minutes", "slot_minutes must be between 5 and 720")
	}
	step := clock.TimeOfDay(minutes * 60)

	created := []*OTSlot{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.activeRoom(ctx, roomID)
		if err != nil {
			return err
		}
		existing, err := s.slots.ListByRoom(ctx, roomID)
		if err != nil {
			return err
		}
		number := nextSlotNumber(existing)
		for start := r.StartTime; start+step <= r.EndTime; start += step {
			end := start + step
			if overlapsAny(existing, start, end) {
				continue
			}
			sl := &OTSlot{RoomID: roomID, SlotNumber: number, StartTime: start, EndTime: end, Status: StatusActive}
			if err := s.slots.Create(ctx, sl); err != nil {
				return err
			}
			created = append(created, sl)
			number++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("room_id", roomID.String()).Int("created", len(created)).Int("minutes", minutes).Msg("ot slots generated")
	return created, nil
}

func overlapsAny(slots []*OTSlot, start, end clock.TimeOfDay) bool {
	for _, sl := range slots {
		if sl.StartTime < end && start < sl.EndTime {
			return true
		}
	}
	return false
}

// SeedRoom loads a fixture: the room, its explicit slots, then generated
// slots when SlotMinutes is set. An existing room with the same number is
// reused and slots overlapping its current ones are skipped, so a seed file
// can be applied more than once.
func (s *Service) SeedRoom(ctx context.Context, f RoomFixture) (*OTRoom, error) {
	room, err := s.rooms.GetByNumber(ctx, strings.TrimSpace(f.RoomNumber))
	if err != nil {
		if !apperr.IsNotFound(err) {
			return nil, err
		}
		room = &f.OTRoom
		if err := s.CreateRoom(ctx, room); err != nil {
			return nil, err
		}
	}
	existing, err := s.slots.ListByRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	for i := range f.Slots {
		sl := f.Slots[i]
		if overlapsAny(existing, sl.StartTime, sl.EndTime) {
			continue
		}
		if err := s.CreateSlot(ctx, room.ID, &sl); err != nil {
			return nil, err
		}
		existing = append(existing, &sl)
	}
	if f.SlotMinutes > 0 {
		if _, err := s.GenerateSlots(ctx, room.ID, f.SlotMinutes); err != nil {
			return nil, err
		}
	}
	return room, nil
}
