package theatre

import (
	"context"

	"github.com/google/uuid"
)

type RoomRepository interface {
	Create(ctx context.Context, r *OTRoom) error
	GetByID(ctx context.Context, id uuid.UUID) (*OTRoom, error)
	GetByNumber(ctx context.Context, number string) (*OTRoom, error)
	Update(ctx context.Context, r *OTRoom) error
	List(ctx context.Context, f RoomFilter, limit, offset int) ([]*OTRoom, int, error)
}

type SlotRepository interface {
	Create(ctx context.Context, s *OTSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*OTSlot, error)
	Update(ctx context.Context, s *OTSlot) error
	// ListByRoom returns every slot of the room, ordered by start time.
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*OTSlot, error)
	CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error)
}
