package allocation

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/otsched/internal/domain/directory"
	"github.com/ehr/otsched/internal/domain/theatre"
	"github.com/ehr/otsched/internal/platform/apperr"
	"github.com/ehr/otsched/internal/platform/clock"
	"github.com/ehr/otsched/internal/platform/db"
	"github.com/ehr/otsched/internal/platform/db/dbtest"
)

func TestMain(m *testing.M) {
	os.Exit(dbtest.Run(m))
}

type pgFixture struct {
	pool    *pgxpool.Pool
	repo    Repository
	room    *theatre.OTRoom
	slots   []*theatre.OTSlot
	patient uuid.UUID
	surgeon uuid.UUID
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	pool := dbtest.Pool(t)
	ctx := context.Background()
	f := &pgFixture{pool: pool, repo: NewRepoPG(pool), patient: uuid.New(), surgeon: uuid.New()}

	if _, err := pool.Exec(ctx, `INSERT INTO patient (id, mrn, full_name) VALUES ($1, 'MRN-1', 'Asha Rao')`, f.patient); err != nil {
		t.Fatalf("insert patient: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO staff (id, full_name, role) VALUES ($1, 'Dr. Mehta', 'surgeon')`, f.surgeon); err != nil {
		t.Fatalf("insert staff: %v", err)
	}

	catalog := theatre.NewService(theatre.NewRoomRepoPG(pool), theatre.NewSlotRepoPG(pool), db.NewTransactor(pool), zerolog.Nop())
	f.room = &theatre.OTRoom{RoomNumber: "OT-01", Name: "Main", StartTime: tod("08:00"), EndTime: tod("12:00")}
	if err := catalog.CreateRoom(ctx, f.room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	// Created out of order so reads must sort by start time.
	for _, r := range [][2]string{{"09:00", "09:30"}, {"08:00", "08:30"}, {"08:30", "09:00"}} {
		sl := &theatre.OTSlot{StartTime: tod(r[0]), EndTime: tod(r[1])}
		if err := catalog.CreateSlot(ctx, f.room.ID, sl); err != nil {
			t.Fatalf("create slot: %v", err)
		}
		f.slots = append(f.slots, sl)
	}
	return f
}

func (f *pgFixture) allocation(date clock.Date, slots ...*theatre.OTSlot) *Allocation {
	a := &Allocation{
		PatientID:      f.patient,
		Source:         PatientSource{Kind: SourceDirect, ID: f.patient},
		RoomID:         f.room.ID,
		LeadSurgeonID:  f.surgeon,
		AllocationDate: date,
		RecordStatus:   RecordActive,
	}
	for _, s := range slots {
		a.SlotIDs = append(a.SlotIDs, s.ID)
	}
	return a
}

func TestRepoPG_CreateAndGet(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	a := f.allocation(testDay, f.slots[0], f.slots[1])
	minutes := 45
	start := tod("08:15")
	ref := "allocations/x/"
	a.DurationMinutes = &minutes
	a.PlannedStart = &start
	a.OperationDescription = "Appendectomy"
	a.DocumentsRef = &ref
	if err := f.repo.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := f.repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// slots[1] (08:00) sorts before slots[0] (09:00).
	if len(got.SlotIDs) != 2 || got.SlotIDs[0] != f.slots[1].ID || got.SlotIDs[1] != f.slots[0].ID {
		t.Errorf("expected slot ids ordered by start time, got %v", got.SlotIDs)
	}
	if got.AllocationDate != testDay {
		t.Errorf("expected date %s, got %s", testDay, got.AllocationDate)
	}
	if got.Source.Kind != SourceDirect || got.Source.ID != f.patient {
		t.Errorf("unexpected source %+v", got.Source)
	}
	if got.PlannedStart == nil || *got.PlannedStart != start || got.PlannedEnd != nil {
		t.Errorf("unexpected planned window %v-%v", got.PlannedStart, got.PlannedEnd)
	}
	if got.DurationMinutes == nil || *got.DurationMinutes != 45 {
		t.Errorf("unexpected duration %v", got.DurationMinutes)
	}
	if got.OperationDescription != "Appendectomy" || got.PreOperationNotes != "" {
		t.Errorf("unexpected text fields %q %q", got.OperationDescription, got.PreOperationNotes)
	}
	if got.StatusOverride != nil {
		t.Errorf("expected no override, got %v", *got.StatusOverride)
	}

	if _, err := f.repo.GetByID(ctx, uuid.New()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRepoPG_UpdateReplacesSlots(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	a := f.allocation(testDay, f.slots[0], f.slots[1])
	if err := f.repo.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled := StatusCancelled
	a.SlotIDs = []uuid.UUID{f.slots[2].ID}
	a.StatusOverride = &cancelled
	a.PostOperationNotes = "stable"
	if err := f.repo.Update(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := f.repo.GetByID(ctx, a.ID)
	if len(got.SlotIDs) != 1 || got.SlotIDs[0] != f.slots[2].ID {
		t.Errorf("expected slots to be replaced, got %v", got.SlotIDs)
	}
	if got.StatusOverride == nil || *got.StatusOverride != StatusCancelled {
		t.Errorf("expected cancelled override, got %v", got.StatusOverride)
	}
	if got.PostOperationNotes != "stable" {
		t.Errorf("unexpected notes %q", got.PostOperationNotes)
	}

	a.SlotIDs = nil
	if err := f.repo.Update(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = f.repo.GetByID(ctx, a.ID)
	if len(got.SlotIDs) != 0 {
		t.Errorf("expected no slots, got %v", got.SlotIDs)
	}

	missing := f.allocation(testDay)
	missing.ID = uuid.New()
	if err := f.repo.Update(ctx, missing); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRepoPG_UnknownSlot(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	a := f.allocation(testDay)
	a.SlotIDs = []uuid.UUID{uuid.New()}
	err := db.NewTransactor(f.pool).WithinTx(ctx, func(ctx context.Context) error {
		return f.repo.Create(ctx, a)
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.repo.GetByID(ctx, a.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected the row to be rolled back, got %v", err)
	}
}

func TestRepoPG_DeleteCascades(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	a := f.allocation(testDay, f.slots[0])
	if err := f.repo.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var n int
	if err := f.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ot_allocation_slot WHERE allocation_id = $1`, a.ID).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected slot rows to be removed, got %d", n)
	}
	if err := f.repo.Delete(ctx, a.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestRepoPG_ListAndRoomDate(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	other := uuid.New()

	first := f.allocation(testDay, f.slots[0])
	second := f.allocation(testDay, f.slots[1])
	second.LeadSurgeonID = other
	second.RecordStatus = RecordInActive
	tomorrow := f.allocation(testDay.AddDays(1), f.slots[0])
	for _, a := range []*Allocation{first, second, tomorrow} {
		if err := f.repo.Create(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	items, total, err := f.repo.List(ctx, Filter{Date: testDay}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 allocations on the day, got %d/%d", len(items), total)
	}

	items, total, _ = f.repo.List(ctx, Filter{SurgeonID: &other}, 10, 0)
	if total != 1 || items[0].ID != second.ID {
		t.Errorf("expected surgeon filter to match second, got %d", total)
	}
	_, total, _ = f.repo.List(ctx, Filter{RecordStatus: RecordActive, RoomID: &f.room.ID}, 10, 0)
	if total != 2 {
		t.Errorf("expected 2 active allocations, got %d", total)
	}
	items, total, _ = f.repo.List(ctx, Filter{PatientID: &f.patient}, 1, 2)
	if total != 3 || len(items) != 1 || items[0].ID != tomorrow.ID {
		t.Errorf("expected last page to hold tomorrow's booking, got %d/%d", len(items), total)
	}

	day, err := f.repo.ListByRoomDate(ctx, f.room.ID, testDay)
	if err != nil {
		t.Fatalf("list by room date: %v", err)
	}
	if len(day) != 2 {
		t.Errorf("expected inactive records to be included, got %d", len(day))
	}
}

func TestService_ConcurrentBookingsPG(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	dir := directory.NewDirectoryPG(f.pool)
	svc := NewService(Deps{
		Repo:      f.repo,
		Rooms:     theatre.NewRoomRepoPG(f.pool),
		Slots:     theatre.NewSlotRepoPG(f.pool),
		Directory: dir,
		Clock:     clock.NewFixed(at("07:00")),
		Tx:        db.NewTransactor(f.pool),
		Logger:    zerolog.Nop(),
	})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, CreateRequest{
				SourceFields:   SourceFields{PatientID: &f.patient},
				RoomID:         f.room.ID,
				SlotIDs:        []uuid.UUID{f.slots[1].ID},
				LeadSurgeonID:  f.surgeon,
				AllocationDate: testDay,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, apperr.ErrSlotConflict):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one booking to win, got %d", wins)
	}

	views, err := svc.ListSlots(ctx, f.room.ID, testDay)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	if !viewFor(views, f.slots[1].ID).IsOccupied {
		t.Error("expected the contested slot to be occupied")
	}
}
