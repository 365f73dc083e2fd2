package allocation

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/otsched/internal/platform/clock"
)

type Repository interface {
	Create(ctx context.Context, a *Allocation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Allocation, error)
	Update(ctx context.Context, a *Allocation) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List applies every Filter field except Status. A non-positive limit
	// returns all matches.
	List(ctx context.Context, f Filter, limit, offset int) ([]*Allocation, int, error)
	// ListByRoomDate returns every allocation of the room on date, whatever
	// its record status.
	ListByRoomDate(ctx context.Context, roomID uuid.UUID, date clock.Date) ([]*Allocation, error)
}
