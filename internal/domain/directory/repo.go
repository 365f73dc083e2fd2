package directory

import (
	"context"

	"github.com/google/uuid"
)

// Directory looks up external records by id.
type Directory interface {
	Patient(ctx context.Context, id uuid.UUID) (*Patient, error)
	Staff(ctx context.Context, id uuid.UUID) (*Staff, error)
	RoomAdmission(ctx context.Context, id uuid.UUID) (*RoomAdmission, error)
	OPDAppointment(ctx context.Context, id uuid.UUID) (*OPDAppointment, error)
	EmergencyBedSlot(ctx context.Context, id uuid.UUID) (*EmergencyBedSlot, error)
	Bill(ctx context.Context, id uuid.UUID) (*Bill, error)
}
