// Package directory reads the hospital records an OT booking refers to but
// does not own: patients, staff, admissions, OPD appointments, emergency
// beds and bills.
package directory

import (
	"errors"

	"github.com/google/uuid"

	"github.com/ehr/otsched/internal/platform/clock"
)

// ErrNotFound is returned when the referenced record does not exist. Any
// other error from a Directory means the lookup itself failed.
var ErrNotFound = errors.New("directory record not found")

const (
	StatusActive   = "Active"
	StatusInActive = "InActive"
)

// Staff roles.
const (
	RoleSurgeon      = "surgeon"
	RoleDoctor       = "doctor"
	RoleAnaesthetist = "anaesthetist"
	RoleNurse        = "nurse"
)

type Patient struct {
	ID       uuid.UUID `db:"id" json:"id"`
	MRN      string    `db:"mrn" json:"mrn,omitempty"`
	FullName string    `db:"full_name" json:"full_name"`
	Status   string    `db:"status" json:"status"`
}

type Staff struct {
	ID       uuid.UUID `db:"id" json:"id"`
	FullName string    `db:"full_name" json:"full_name"`
	Role     string    `db:"role" json:"role"`
	Status   string    `db:"status" json:"status"`
}

func (s *Staff) IsActive() bool { return s.Status == "" || s.Status == StatusActive }

type RoomAdmission struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	RoomNo    string    `db:"room_no" json:"room_no,omitempty"`
	BedNo     string    `db:"bed_no" json:"bed_no,omitempty"`
}

type OPDAppointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	TokenNo         string     `db:"token_no" json:"token_no,omitempty"`
	AppointmentDate clock.Date `db:"appointment_date" json:"appointment_date"`
}

// EmergencyBedSlot is a bed in the emergency ward. PatientID is the current
// occupant and is nil while the bed is empty.
type EmergencyBedSlot struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	BedID     string     `db:"bed_id" json:"bed_id"`
	PatientID *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
}

type Bill struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	BillNo    string     `db:"bill_no" json:"bill_no,omitempty"`
	PatientID *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
}

// Fixtures is the shape of a seed file for the in-memory directory.
type Fixtures struct {
	Patients          []Patient          `json:"patients"`
	Staff             []Staff            `json:"staff"`
	RoomAdmissions    []RoomAdmission    `json:"room_admissions"`
	OPDAppointments   []OPDAppointment   `json:"opd_appointments"`
	EmergencyBedSlots []EmergencyBedSlot `json:"emergency_bed_slots"`
	Bills             []Bill             `json:"bills"`
}
