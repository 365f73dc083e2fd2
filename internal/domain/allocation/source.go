package allocation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ehr/otsched/internal/domain/directory"
	"github.com/ehr/otsched/internal/platform/apperr"
)

// SourceKind tags where the patient of a booking came from.
type SourceKind string

const (
	SourceDirect           SourceKind = "direct"
	SourceRoomAdmission    SourceKind = "room_admission"
	SourceOPDAppointment   SourceKind = "opd_appointment"
	SourceEmergencyBedSlot SourceKind = "emergency_bed_slot"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceDirect, SourceRoomAdmission, SourceOPDAppointment, SourceEmergencyBedSlot:
		return true
	}
	return false
}

// PatientSource is exactly one intake record: the kind says which table ID
// points into.
type PatientSource struct {
	Kind SourceKind `json:"kind" validate:"omitempty,oneof=direct room_admission opd_appointment emergency_bed_slot"`
	ID   uuid.UUID  `json:"id"`
}

func (s PatientSource) IsZero() bool { return s.Kind == "" && s.ID == uuid.Nil }

// SourceFields is the request shape for a patient source. Callers either send
// a tagged patient_source object or one of the four flat id fields.
type SourceFields struct {
	PatientSource      *PatientSource `json:"patient_source,omitempty"`
	PatientID          *uuid.UUID     `json:"patient_id,omitempty"`
	RoomAdmissionID    *uuid.UUID     `json:"room_admission_id,omitempty"`
	OPDAppointmentID   *uuid.UUID     `json:"opd_appointment_id,omitempty"`
	EmergencyBedSlotID *uuid.UUID     `json:"emergency_bed_slot_id,omitempty"`
}

func (f SourceFields) provided() bool {
	return f.PatientSource != nil || f.PatientID != nil || f.RoomAdmissionID != nil ||
		f.OPDAppointmentID != nil || f.EmergencyBedSlotID != nil
}

// Source collapses the fields into a single PatientSource. Zero populated
// fields is ErrPatientSourceMissing, more than one ErrAmbiguousPatientSource.
func (f SourceFields) Source() (PatientSource, error) {
	var found []PatientSource
	add := func(kind SourceKind, id *uuid.UUID) {
		if id != nil && *id != uuid.Nil {
			found = append(found, PatientSource{Kind: kind, ID: *id})
		}
	}
	if f.PatientSource != nil && !f.PatientSource.IsZero() {
		if !f.PatientSource.Kind.Valid() {
			return PatientSource{}, apperr.Validation("patient_source.kind", "unknown patient source kind %q", f.PatientSource.Kind)
		}
		if f.PatientSource.ID == uuid.Nil {
			return PatientSource{}, apperr.MissingField("patient_source.id")
		}
		found = append(found, *f.PatientSource)
	}
	add(SourceDirect, f.PatientID)
	add(SourceRoomAdmission, f.RoomAdmissionID)
	add(SourceOPDAppointment, f.OPDAppointmentID)
	add(SourceEmergencyBedSlot, f.EmergencyBedSlotID)

	switch len(found) {
	case 0:
		return PatientSource{}, apperr.New(apperr.ErrPatientSourceMissing, "patient_source",
			"one of patient_id, room_admission_id, opd_appointment_id or emergency_bed_slot_id is required")
	case 1:
		return found[0], nil
	default:
		return PatientSource{}, apperr.New(apperr.ErrAmbiguousPatientSource, "patient_source",
			"%d patient sources given, exactly one is allowed", len(found))
	}
}

// Resolver maps a PatientSource onto the canonical patient id.
type Resolver struct {
	dir directory.Directory
}

func NewResolver(dir directory.Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve never guesses: a missing record is ErrPatientSourceUnresolvable and
// a failed lookup is ErrDependencyUnavailable.
func (r *Resolver) Resolve(ctx context.Context, src PatientSource) (uuid.UUID, error) {
	switch src.Kind {
	case SourceDirect:
		p, err := r.dir.Patient(ctx, src.ID)
		if err != nil {
			return uuid.Nil, lookupErr(src, "patient directory", err)
		}
		return p.ID, nil
	case SourceRoomAdmission:
		a, err := r.dir.RoomAdmission(ctx, src.ID)
		if err != nil {
			return uuid.Nil, lookupErr(src, "room admission directory", err)
		}
		return a.PatientID, nil
	case SourceOPDAppointment:
		a, err := r.dir.OPDAppointment(ctx, src.ID)
		if err != nil {
			return uuid.Nil, lookupErr(src, "opd appointment directory", err)
		}
		return a.PatientID, nil
	case SourceEmergencyBedSlot:
		b, err := r.dir.EmergencyBedSlot(ctx, src.ID)
		if err != nil {
			return uuid.Nil, lookupErr(src, "emergency bed directory", err)
		}
		if b.PatientID == nil || *b.PatientID == uuid.Nil {
			return uuid.Nil, apperr.New(apperr.ErrPatientSourceUnresolvable, "emergency_bed_slot_id",
				"emergency bed %s has no occupant", b.BedID)
		}
		return *b.PatientID, nil
	default:
		return uuid.Nil, apperr.Validation("patient_source.kind", "unknown patient source kind %q", src.Kind)
	}
}

func sourceField(k SourceKind) string {
	if k == SourceDirect {
		return "patient_id"
	}
	return string(k) + "_id"
}

func lookupErr(src PatientSource, dependency string, err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		return apperr.New(apperr.ErrPatientSourceUnresolvable, sourceField(src.Kind),
			"%s %s does not map to a patient", src.Kind, src.ID)
	}
	return apperr.Unavailable(dependency, err)
}
