package allocation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/otsched/internal/domain/theatre"
	"github.com/ehr/otsched/internal/platform/clock"
)

// Status is the operational state of an allocation. Scheduled, InProgress and
// Completed are derived from the clock; Cancelled and Postponed are manual
// overrides and final.
type Status string

const (
	StatusScheduled  Status = "Scheduled"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
	StatusPostponed  Status = "Postponed"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusPostponed:
		return st, nil
	}
	return "", fmt.Errorf("unknown operation status %q", s)
}

func (s Status) IsOverride() bool { return s == StatusCancelled || s == StatusPostponed }

// Holds reports whether an allocation in this state keeps its slots.
func (s Status) Holds() bool { return s == StatusScheduled || s == StatusInProgress }

// WindowPolicy picks which part of a multi-slot booking drives its status.
type WindowPolicy string

const (
	// WindowSpan runs from the earliest slot start to the latest slot end.
	// It is the default on purpose: a booking of 09:00-09:30 and 10:00-10:30
	// stays InProgress at 09:45. WindowEarliestSlot is the strict
	// earliest-slot rule.
	WindowSpan WindowPolicy = "span"
	// WindowEarliestSlot uses only the earliest-starting slot's start and end.
	WindowEarliestSlot WindowPolicy = "earliest_slot"
)

func ParseWindowPolicy(s string) (WindowPolicy, error) {
	switch p := WindowPolicy(s); p {
	case "":
		return WindowSpan, nil
	case WindowSpan, WindowEarliestSlot:
		return p, nil
	}
	return "", fmt.Errorf("unknown status window %q (want %q or %q)", s, WindowSpan, WindowEarliestSlot)
}

// Window is the time-of-day range a same-day allocation is evaluated against.
type Window struct {
	Start clock.TimeOfDay
	End   clock.TimeOfDay
	Set   bool
}

// DeriveStatus is pure. An override wins; any date other than today is
// Scheduled; otherwise now is placed against [Start, End).
func DeriveStatus(date clock.Date, w Window, override Status, now time.Time) Status {
	if override.IsOverride() {
		return override
	}
	if clock.DateOf(now) != date || !w.Set {
		return StatusScheduled
	}
	tod := clock.TimeOfDayOf(now)
	switch {
	case tod < w.Start:
		return StatusScheduled
	case tod < w.End:
		return StatusInProgress
	default:
		return StatusCompleted
	}
}

// WindowOf computes the evaluation window of a from the slot catalog of its
// room. Without known slots the planned start and end are used when both are
// present.
func WindowOf(a *Allocation, catalog map[uuid.UUID]*theatre.OTSlot, policy WindowPolicy) Window {
	var w Window
	for _, id := range a.SlotIDs {
		sl, ok := catalog[id]
		if !ok {
			continue
		}
		if !w.Set {
			w = Window{Start: sl.StartTime, End: sl.EndTime, Set: true}
			continue
		}
		switch policy {
		case WindowEarliestSlot:
			if sl.StartTime < w.Start || (sl.StartTime == w.Start && sl.EndTime < w.End) {
				w.Start, w.End = sl.StartTime, sl.EndTime
			}
		default:
			if sl.StartTime < w.Start {
				w.Start = sl.StartTime
			}
			if sl.EndTime > w.End {
				w.End = sl.EndTime
			}
		}
	}
	if !w.Set && a.PlannedStart != nil && a.PlannedEnd != nil && *a.PlannedStart < *a.PlannedEnd {
		w = Window{Start: *a.PlannedStart, End: *a.PlannedEnd, Set: true}
	}
	return w
}

// Deriver binds DeriveStatus to a clock and a window policy.
type Deriver struct {
	Clock  clock.Clock
	Policy WindowPolicy
}

func (d Deriver) Derive(a *Allocation, catalog map[uuid.UUID]*theatre.OTSlot) Status {
	return DeriveStatus(a.AllocationDate, WindowOf(a, catalog, d.Policy), a.override(), d.Clock.Now())
}

// Apply sets a.OperationStatus from the clock.
func (d Deriver) Apply(a *Allocation, catalog map[uuid.UUID]*theatre.OTSlot) {
	a.OperationStatus = d.Derive(a, catalog)
}

func catalogOf(slots []*theatre.OTSlot) map[uuid.UUID]*theatre.OTSlot {
	m := make(map[uuid.UUID]*theatre.OTSlot, len(slots))
	for _, sl := range slots {
		m[sl.ID] = sl
	}
	return m
}
