package allocation

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/otsched/internal/domain/theatre"
	"github.com/ehr/otsched/internal/platform/clock"
)

type SlotState string

const (
	SlotAvailable   SlotState = "available"
	SlotOccupied    SlotState = "occupied"
	SlotUnavailable SlotState = "unavailable"
)

// SlotView is one slot of a room on a given date.
type SlotView struct {
	SlotID                uuid.UUID       `json:"slot_id"`
	SlotNumber            int             `json:"slot_number"`
	StartTime             clock.TimeOfDay `json:"start_time"`
	EndTime               clock.TimeOfDay `json:"end_time"`
	Date                  clock.Date      `json:"date"`
	State                 SlotState       `json:"state"`
	IsAvailable           bool            `json:"is_available"`
	IsOccupied            bool            `json:"is_occupied"`
	OccupyingAllocationID *uuid.UUID      `json:"occupying_allocation_id,omitempty"`
	OccupyingStatus       Status          `json:"occupying_status,omitempty"`
	Selectable            bool            `json:"selectable"`
}

// Project builds the occupancy of slots on date from allocs. Allocations that
// are InActive, excluded, or whose derived status does not hold are ignored.
// Selectable is false for anything not available, for past dates, and for
// slots already over today.
func Project(room *theatre.OTRoom, slots []*theatre.OTSlot, allocs []*Allocation, date clock.Date,
	exclude uuid.UUID, d Deriver) []SlotView {
	now := d.Clock.Now()
	today := clock.DateOf(now)
	nowTOD := clock.TimeOfDayOf(now)
	catalog := catalogOf(slots)

	holders := make(map[uuid.UUID]*Allocation)
	statuses := make(map[uuid.UUID]Status)
	for _, a := range allocs {
		if a.ID == exclude || !a.IsActive() || a.AllocationDate != date || a.RoomID != room.ID {
			continue
		}
		st := DeriveStatus(a.AllocationDate, WindowOf(a, catalog, d.Policy), a.override(), now)
		if !st.Holds() {
			continue
		}
		for _, id := range a.SlotIDs {
			if _, taken := holders[id]; !taken {
				holders[id] = a
				statuses[id] = st
			}
		}
	}

	views := make([]SlotView, 0, len(slots))
	for _, sl := range slots {
		v := SlotView{
			SlotID:     sl.ID,
			SlotNumber: sl.SlotNumber,
			StartTime:  sl.StartTime,
			EndTime:    sl.EndTime,
			Date:       date,
		}
		switch holder, ok := holders[sl.ID]; {
		case ok:
			id := holder.ID
			v.State = SlotOccupied
			v.IsOccupied = true
			v.OccupyingAllocationID = &id
			v.OccupyingStatus = statuses[sl.ID]
		case !sl.IsActive() || !room.IsActive():
			v.State = SlotUnavailable
		default:
			v.State = SlotAvailable
			v.IsAvailable = true
			v.Selectable = !date.Before(today) && !(date == today && sl.EndTime <= nowTOD)
		}
		views = append(views, v)
	}
	return views
}

// Projector loads the inputs of Project from the stores.
type Projector struct {
	rooms   theatre.RoomRepository
	slots   theatre.SlotRepository
	allocs  Repository
	deriver Deriver
}

func NewProjector(rooms theatre.RoomRepository, slots theatre.SlotRepository, allocs Repository, d Deriver) *Projector {
	return &Projector{rooms: rooms, slots: slots, allocs: allocs, deriver: d}
}

// ProjectOccupancy is read only; repeated calls without writes in between
// return equal views.
func (p *Projector) ProjectOccupancy(ctx context.Context, roomID uuid.UUID, date clock.Date, exclude uuid.UUID) ([]SlotView, error) {
	room, err := p.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	slots, err := p.slots.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	allocs, err := p.allocs.ListByRoomDate(ctx, roomID, date)
	if err != nil {
		return nil, err
	}
	return Project(room, slots, allocs, date, exclude, p.deriver), nil
}

// holdersOf indexes the occupied views by slot id.
func holdersOf(views []SlotView) map[uuid.UUID]uuid.UUID {
	m := make(map[uuid.UUID]uuid.UUID)
	for _, v := range views {
		if v.IsOccupied && v.OccupyingAllocationID != nil {
			m[v.SlotID] = *v.OccupyingAllocationID
		}
	}
	return m
}
