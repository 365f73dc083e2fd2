package theatre

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/otsched/internal/platform/clock"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// RoomTypes lists the accepted OT room types.
var RoomTypes = map[string]bool{
	"General":     true,
	"Cardiac":     true,
	"Orthopedic":  true,
	"Neuro":       true,
	"Gynaecology": true,
	"ENT":         true,
	"Ophthalmic":  true,
	"Paediatric":  true,
	"Urology":     true,
	"Plastic":     true,
	"Other":       true,
}

// OTRoom maps to the ot_room table. StartTime and EndTime bound the daily
// operating window every slot of the room must fit in.
type OTRoom struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	RoomNumber  string          `db:"room_number" json:"room_number"`
	Type        string          `db:"room_type" json:"type"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description,omitempty"`
	StartTime   clock.TimeOfDay `db:"start_time" json:"start_time"`
	EndTime     clock.TimeOfDay `db:"end_time" json:"end_time"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

func (r *OTRoom) IsActive() bool { return r.Status == StatusActive }

// OTSlot maps to the ot_slot table. A slot is a recurring daily template,
// not a dated instance.
type OTSlot struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	RoomID     uuid.UUID       `db:"room_id" json:"room_id"`
	SlotNumber int             `db:"slot_number" json:"slot_number"`
	StartTime  clock.TimeOfDay `db:"start_time" json:"start_time"`
	EndTime    clock.TimeOfDay `db:"end_time" json:"end_time"`
	Status     string          `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

func (s *OTSlot) IsActive() bool { return s.Status == StatusActive }

// RoomFilter narrows ListRooms. Empty fields match everything.
type RoomFilter struct {
	Status string
	Type   string
}

// RoomPatch carries the fields an update may change. Nil leaves a field as is.
type RoomPatch struct {
	RoomNumber  *string          `json:"room_number"`
	Type        *string          `json:"type"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	StartTime   *clock.TimeOfDay `json:"start_time"`
	EndTime     *clock.TimeOfDay `json:"end_time"`
	Status      *string          `json:"status" validate:"omitempty,oneof=active inactive"`
}

type SlotPatch struct {
	SlotNumber *int             `json:"slot_number" validate:"omitempty,gte=1"`
	StartTime  *clock.TimeOfDay `json:"start_time"`
	EndTime    *clock.TimeOfDay `json:"end_time"`
	Status     *string          `json:"status" validate:"omitempty,oneof=active inactive"`
}

// GenerateRequest splits a room's operating window into consecutive slots.
type GenerateRequest struct {
	SlotMinutes int `json:"slot_minutes" validate:"required,gte=5,lte=720"`
}

// RoomFixture is the seed-file shape for a room and its slots.
type RoomFixture struct {
	OTRoom
	SlotMinutes int      `json:"slot_minutes"`
	Slots       []OTSlot `json:"slots"`
}
