package allocation

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/otsched/internal/platform/clock"
)

const (
	RecordActive   = "Active"
	RecordInActive = "InActive"
)

// Allocation maps to ot_allocation plus its ot_allocation_slot rows.
// OperationStatus is derived on every read; only StatusOverride is stored.
type Allocation struct {
	ID                   uuid.UUID        `db:"id" json:"id"`
	PatientID            uuid.UUID        `db:"patient_id" json:"patient_id"`
	Source               PatientSource    `json:"patient_source"`
	RoomID               uuid.UUID        `db:"room_id" json:"room_id"`
	SlotIDs              []uuid.UUID      `json:"slot_ids"`
	LeadSurgeonID        uuid.UUID        `db:"lead_surgeon_id" json:"lead_surgeon_id"`
	AssistantDoctorID    *uuid.UUID       `db:"assistant_doctor_id" json:"assistant_doctor_id,omitempty"`
	AnaesthetistID       *uuid.UUID       `db:"anaesthetist_id" json:"anaesthetist_id,omitempty"`
	NurseID              *uuid.UUID       `db:"nurse_id" json:"nurse_id,omitempty"`
	AllocationDate       clock.Date       `db:"allocation_date" json:"allocation_date"`
	DurationMinutes      *int             `db:"duration_minutes" json:"duration_minutes,omitempty"`
	PlannedStart         *clock.TimeOfDay `db:"planned_start" json:"planned_start,omitempty"`
	PlannedEnd           *clock.TimeOfDay `db:"planned_end" json:"planned_end,omitempty"`
	ActualStart          *time.Time       `db:"actual_start" json:"actual_start,omitempty"`
	ActualEnd            *time.Time       `db:"actual_end" json:"actual_end,omitempty"`
	OperationDescription string           `db:"operation_description" json:"operation_description,omitempty"`
	OperationStatus      Status           `json:"operation_status"`
	StatusOverride       *Status          `db:"status_override" json:"-"`
	PreOperationNotes    string           `db:"pre_operation_notes" json:"pre_operation_notes,omitempty"`
	PostOperationNotes   string           `db:"post_operation_notes" json:"post_operation_notes,omitempty"`
	DocumentsRef         *string          `db:"documents_ref" json:"documents_ref,omitempty"`
	BillID               *uuid.UUID       `db:"bill_id" json:"bill_id,omitempty"`
	RecordStatus         string           `db:"record_status" json:"record_status"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
}

func (a *Allocation) override() Status {
	if a.StatusOverride == nil {
		return ""
	}
	return *a.StatusOverride
}

func (a *Allocation) IsActive() bool { return a.RecordStatus == RecordActive }

func (a *Allocation) clone() *Allocation {
	c := *a
	c.SlotIDs = append([]uuid.UUID(nil), a.SlotIDs...)
	return &c
}

func hasSlot(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// CreateRequest is the booking payload.
type CreateRequest struct {
	SourceFields
	RoomID               uuid.UUID        `json:"room_id"`
	SlotIDs              []uuid.UUID      `json:"slot_ids"`
	LeadSurgeonID        uuid.UUID        `json:"lead_surgeon_id"`
	AssistantDoctorID    *uuid.UUID       `json:"assistant_doctor_id"`
	AnaesthetistID       *uuid.UUID       `json:"anaesthetist_id"`
	NurseID              *uuid.UUID       `json:"nurse_id"`
	AllocationDate       clock.Date       `json:"allocation_date"`
	DurationMinutes      *int             `json:"duration_minutes" validate:"omitempty,gte=0"`
	PlannedStart         *clock.TimeOfDay `json:"planned_start"`
	PlannedEnd           *clock.TimeOfDay `json:"planned_end"`
	OperationDescription string           `json:"operation_description" validate:"max=2000"`
	PreOperationNotes    string           `json:"pre_operation_notes" validate:"max=4000"`
	PostOperationNotes   string           `json:"post_operation_notes" validate:"max=4000"`
	BillID               *uuid.UUID       `json:"bill_id"`
}

// UpdateRequest patches an allocation. Nil fields are left unchanged.
type UpdateRequest struct {
	SourceFields
	RoomID               *uuid.UUID       `json:"room_id"`
	SlotIDs              *[]uuid.UUID     `json:"slot_ids"`
	LeadSurgeonID        *uuid.UUID       `json:"lead_surgeon_id"`
	AssistantDoctorID    *uuid.UUID       `json:"assistant_doctor_id"`
	AnaesthetistID       *uuid.UUID       `json:"anaesthetist_id"`
	NurseID              *uuid.UUID       `json:"nurse_id"`
	AllocationDate       *clock.Date      `json:"allocation_date"`
	DurationMinutes      *int             `json:"duration_minutes" validate:"omitempty,gte=0"`
	PlannedStart         *clock.TimeOfDay `json:"planned_start"`
	PlannedEnd           *clock.TimeOfDay `json:"planned_end"`
	ActualStart          *time.Time       `json:"actual_start"`
	ActualEnd            *time.Time       `json:"actual_end"`
	OperationDescription *string          `json:"operation_description" validate:"omitempty,max=2000"`
	PreOperationNotes    *string          `json:"pre_operation_notes" validate:"omitempty,max=4000"`
	PostOperationNotes   *string          `json:"post_operation_notes" validate:"omitempty,max=4000"`
	BillID               *uuid.UUID       `json:"bill_id"`
	OperationStatus      *Status          `json:"operation_status" validate:"omitempty,oneof=Scheduled InProgress Completed Cancelled Postponed"`
	RecordStatus         *string          `json:"record_status" validate:"omitempty,oneof=Active InActive"`
}

// DuplicateRequest re-books an existing allocation. A zero date means today.
type DuplicateRequest struct {
	AllocationDate clock.Date  `json:"allocation_date"`
	SlotIDs        []uuid.UUID `json:"slot_ids"`
}

// Filter narrows List. Zero fields match everything; Status matches the
// derived status.
type Filter struct {
	RoomID       *uuid.UUID
	Date         clock.Date
	PatientID    *uuid.UUID
	SurgeonID    *uuid.UUID
	Status       Status
	RecordStatus string
}
