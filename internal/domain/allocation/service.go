package allocation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/otsched/internal/domain/directory"
	"github.com/ehr/otsched/internal/domain/theatre"
	"github.com/ehr/otsched/internal/platform/apperr"
	"github.com/ehr/otsched/internal/platform/auth"
	"github.com/ehr/otsched/internal/platform/blobstore"
	"github.com/ehr/otsched/internal/platform/clock"
	"github.com/ehr/otsched/internal/platform/db"
	"github.com/ehr/otsched/internal/platform/events"
	"github.com/ehr/otsched/internal/platform/lock"
)

// Deps wires a Service. Locker, Tx, Publisher and Blobs fall back to
// in-process implementations when nil.
type Deps struct {
	Repo      Repository
	Rooms     theatre.RoomRepository
	Slots     theatre.SlotRepository
	Directory directory.Directory
	Clock     clock.Clock
	Policy    WindowPolicy
	Locker    lock.Locker
	Tx        db.TxRunner
	Publisher events.Publisher
	Blobs     blobstore.BlobStore
	Logger    zerolog.Logger
}

type Service struct {
	repo      Repository
	rooms     theatre.RoomRepository
	slots     theatre.SlotRepository
	dir       directory.Directory
	resolver  *Resolver
	projector *Projector
	deriver   Deriver
	locker    lock.Locker
	tx        db.TxRunner
	publisher events.Publisher
	blobs     blobstore.BlobStore
	logger    zerolog.Logger
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Policy == "" {
		d.Policy = WindowSpan
	}
	if d.Locker == nil {
		d.Locker = lock.NewLocalLocker()
	}
	if d.Tx == nil {
		d.Tx = db.NoTx{}
	}
	if d.Publisher == nil {
		d.Publisher = events.NewLogPublisher(d.Logger)
	}
	if d.Blobs == nil {
		d.Blobs = blobstore.NewMemoryStore()
	}
	deriver := Deriver{Clock: d.Clock, Policy: d.Policy}
	return &Service{
		repo:      d.Repo,
		rooms:     d.Rooms,
		slots:     d.Slots,
		dir:       d.Directory,
		resolver:  NewResolver(d.Directory),
		projector: NewProjector(d.Rooms, d.Slots, d.Repo, deriver),
		deriver:   deriver,
		locker:    d.Locker,
		tx:        d.Tx,
		publisher: d.Publisher,
		blobs:     d.Blobs,
		logger:    d.Logger,
	}
}

// lockRooms takes the room locks in key order so two writers touching the
// same pair of rooms cannot deadlock.
func (s *Service) lockRooms(ctx context.Context, ids ...uuid.UUID) (func(), error) {
	keys := make([]string, 0, len(ids))
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			keys = append(keys, lock.RoomKey(id.String()))
		}
	}
	sort.Strings(keys)

	var releases []func()
	release := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, k := range keys {
		r, err := s.locker.Lock(ctx, k)
		if err != nil {
			release()
			if errors.Is(err, lock.ErrLockTimeout) {
				return nil, apperr.Unavailable("room lock", err)
			}
			return nil, err
		}
		releases = append(releases, r)
	}
	return release, nil
}

// maxRelock bounds how often lockAllocation chases an allocation that keeps
// changing rooms under it.
const maxRelock = 5

// lockAllocation locks the room the allocation sits in, plus extra rooms.
// The record is read again once the locks are held; if a concurrent update
// moved it to another room meanwhile, the locks are dropped and taken again
// for the new room. The returned record is the one read under the lock.
func (s *Service) lockAllocation(ctx context.Context, id uuid.UUID, extra ...uuid.UUID) (*Allocation, func(), error) {
	for attempt := 0; attempt < maxRelock; attempt++ {
		seen, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		rooms := append([]uuid.UUID{seen.RoomID}, extra...)
		release, err := s.lockRooms(ctx, rooms...)
		if err != nil {
			return nil, nil, err
		}
		held, err := s.repo.GetByID(ctx, id)
		if err != nil {
			release()
			return nil, nil, err
		}
		if held.RoomID == seen.RoomID {
			return held, release, nil
		}
		release()
		s.logger.Debug().
			Str("allocation_id", id.String()).
			Str("from", seen.RoomID.String()).
			Str("to", held.RoomID.String()).
			Msg("allocation moved while locking, retrying")
	}
	return nil, nil, apperr.Unavailable("room lock", fmt.Errorf("allocation %s kept moving between rooms", id))
}

func (s *Service) publish(ctx context.Context, eventType string, a *Allocation) {
	evt := events.New(eventType, a.ID, s.deriver.Clock.Now(), a)
	evt.Actor = auth.UserIDFromContext(ctx)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("allocation_id", a.ID.String()).Str("event_type", eventType).Msg("publish allocation event")
	}
}

// -- validation --

func dedupe(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

var staffRoles = map[string][]string{
	"lead_surgeon_id":     {directory.RoleSurgeon},
	"assistant_doctor_id": {directory.RoleSurgeon, directory.RoleDoctor},
	"anaesthetist_id":     {directory.RoleAnaesthetist},
	"nurse_id":            {directory.RoleNurse},
}

func (s *Service) checkStaff(ctx context.Context, field string, id *uuid.UUID) error {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	st, err := s.dir.Staff(ctx, *id)
	if errors.Is(err, directory.ErrNotFound) {
		return apperr.Validation(field, "staff member %s not found", *id)
	}
	if err != nil {
		return apperr.Unavailable("staff directory", err)
	}
	if !st.IsActive() {
		return apperr.Validation(field, "staff member %s is not active", st.FullName)
	}
	for _, role := range staffRoles[field] {
		if st.Role == role {
			return nil
		}
	}
	return apperr.Validation(field, "%s has role %q, which cannot fill %s", st.FullName, st.Role, field)
}

func (s *Service) checkBill(ctx context.Context, id *uuid.UUID) error {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	_, err := s.dir.Bill(ctx, *id)
	if errors.Is(err, directory.ErrNotFound) {
		return apperr.Validation("bill_id", "bill %s not found", *id)
	}
	if err != nil {
		return apperr.Unavailable("bill directory", err)
	}
	return nil
}

func checkTimes(a *Allocation) error {
	if a.DurationMinutes != nil && *a.DurationMinutes < 0 {
		return apperr.Validation("duration_minutes", "duration_minutes must not be negative")
	}
	if a.PlannedStart != nil && a.PlannedEnd != nil && *a.PlannedStart >= *a.PlannedEnd {
		return apperr.Validation("planned_end", "planned_end must be after planned_start")
	}
	if a.ActualStart != nil && a.ActualEnd != nil && !a.ActualEnd.After(*a.ActualStart) {
		return apperr.Validation("actual_end", "actual_end must be after actual_start")
	}
	return nil
}

// checkRoomSlots verifies the room is active and every slot belongs to it
// and is active. It returns the room's full slot catalog.
func (s *Service) checkRoomSlots(ctx context.Context, a *Allocation) (map[uuid.UUID]*theatre.OTSlot, error) {
	room, err := s.rooms.GetByID(ctx, a.RoomID)
	if apperr.IsNotFound(err) {
		return nil, apperr.Validation("room_id", "ot room %s not found", a.RoomID)
	}
	if err != nil {
		return nil, err
	}
	if !room.IsActive() {
		return nil, apperr.Validation("room_id", "ot room %s is inactive", room.RoomNumber)
	}
	slots, err := s.slots.ListByRoom(ctx, a.RoomID)
	if err != nil {
		return nil, err
	}
	catalog := catalogOf(slots)
	for _, id := range a.SlotIDs {
		sl, ok := catalog[id]
		if !ok {
			return nil, apperr.Validation("slot_ids", "slot %s does not belong to room %s", id, room.RoomNumber)
		}
		if !sl.IsActive() {
			return nil, apperr.Validation("slot_ids", "slot %d of room %s is inactive", sl.SlotNumber, room.RoomNumber)
		}
	}
	return catalog, nil
}

// checkConflicts rejects the first requested slot already held by another
// allocation on the same room and date.
func (s *Service) checkConflicts(ctx context.Context, a *Allocation) error {
	if len(a.SlotIDs) == 0 {
		return nil
	}
	views, err := s.projector.ProjectOccupancy(ctx, a.RoomID, a.AllocationDate, a.ID)
	if err != nil {
		return err
	}
	held := holdersOf(views)
	for _, id := range a.SlotIDs {
		if holder, ok := held[id]; ok {
			s.logger.Info().
				Str("room_id", a.RoomID.String()).
				Str("slot_id", id.String()).
				Str("holder_id", holder.String()).
				Str("date", a.AllocationDate.String()).
				Msg("slot conflict")
			return apperr.SlotConflict(id, holder)
		}
	}
	return nil
}

func (s *Service) checkCreate(ctx context.Context, req CreateRequest) (*Allocation, error) {
	src, err := req.Source()
	if err != nil {
		return nil, err
	}
	if req.RoomID == uuid.Nil {
		return nil, apperr.MissingField("room_id")
	}
	if req.LeadSurgeonID == uuid.Nil {
		return nil, apperr.MissingField("lead_surgeon_id")
	}
	if req.AllocationDate.IsZero() {
		return nil, apperr.MissingField("allocation_date")
	}
	patientID, err := s.resolver.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}

	a := &Allocation{
		PatientID:            patientID,
		Source:               src,
		RoomID:               req.RoomID,
		SlotIDs:              dedupe(req.SlotIDs),
		LeadSurgeonID:        req.LeadSurgeonID,
		AssistantDoctorID:    req.AssistantDoctorID,
		AnaesthetistID:       req.AnaesthetistID,
		NurseID:              req.NurseID,
		AllocationDate:       req.AllocationDate,
		DurationMinutes:      req.DurationMinutes,
		PlannedStart:         req.PlannedStart,
		PlannedEnd:           req.PlannedEnd,
		OperationDescription: req.OperationDescription,
		PreOperationNotes:    req.PreOperationNotes,
		PostOperationNotes:   req.PostOperationNotes,
		BillID:               req.BillID,
		RecordStatus:         RecordActive,
	}
	if err := checkTimes(a); err != nil {
		return nil, err
	}
	lead := a.LeadSurgeonID
	staff := []struct {
		field string
		id    *uuid.UUID
	}{
		{"lead_surgeon_id", &lead},
		{"assistant_doctor_id", a.AssistantDoctorID},
		{"anaesthetist_id", a.AnaesthetistID},
		{"nurse_id", a.NurseID},
	}
	for _, st := range staff {
		if err := s.checkStaff(ctx, st.field, st.id); err != nil {
			return nil, err
		}
	}
	if err := s.checkBill(ctx, a.BillID); err != nil {
		return nil, err
	}
	return a, nil
}

// -- operations --

// Create books a patient into a room. The occupancy check and the insert run
// under the room lock and inside one transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Allocation, error) {
	a, err := s.checkCreate(ctx, req)
	if err != nil {
		return nil, err
	}

	release, err := s.lockRooms(ctx, a.RoomID)
	if err != nil {
		return nil, err
	}
	defer release()

	var catalog map[uuid.UUID]*theatre.OTSlot
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		catalog, err = s.checkRoomSlots(ctx, a)
		if err != nil {
			return err
		}
		if err := s.checkConflicts(ctx, a); err != nil {
			return err
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.deriver.Apply(a, catalog)
	s.logger.Info().
		Str("allocation_id", a.ID.String()).
		Str("room_id", a.RoomID.String()).
		Str("date", a.AllocationDate.String()).
		Int("slots", len(a.SlotIDs)).
		Str("status", string(a.OperationStatus)).
		Msg("ot allocation created")
	s.publish(ctx, events.AllocationCreated, a)
	return a, nil
}

// decorate derives the status of each allocation, loading each room's slot
// catalog once.
func (s *Service) decorate(ctx context.Context, items ...*Allocation) error {
	catalogs := make(map[uuid.UUID]map[uuid.UUID]*theatre.OTSlot)
	for _, a := range items {
		catalog, ok := catalogs[a.RoomID]
		if !ok {
			slots, err := s.slots.ListByRoom(ctx, a.RoomID)
			if err != nil {
				return err
			}
			catalog = catalogOf(slots)
			catalogs[a.RoomID] = catalog
		}
		s.deriver.Apply(a, catalog)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Allocation, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// List pages allocations. Filtering by derived status needs every candidate
// derived first, so that case pages in memory.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Allocation, int, error) {
	if f.Status != "" {
		if _, err := ParseStatus(string(f.Status)); err != nil {
			return nil, 0, apperr.Validation("status", "%v", err)
		}
	}
	if f.RecordStatus != "" && f.RecordStatus != RecordActive && f.RecordStatus != RecordInActive {
		return nil, 0, apperr.Validation("record_status", "invalid record status: %s", f.RecordStatus)
	}

	if f.Status == "" {
		items, total, err := s.repo.List(ctx, f, limit, offset)
		if err != nil {
			return nil, 0, err
		}
		if err := s.decorate(ctx, items...); err != nil {
			return nil, 0, err
		}
		return items, total, nil
	}

	all, _, err := s.repo.List(ctx, f, 0, 0)
	if err != nil {
		return nil, 0, err
	}
	if err := s.decorate(ctx, all...); err != nil {
		return nil, 0, err
	}
	matched := make([]*Allocation, 0, len(all))
	for _, a := range all {
		if a.OperationStatus == f.Status {
			matched = append(matched, a)
		}
	}
	return pageOf(matched, limit, offset), len(matched), nil
}

func pageOf(items []*Allocation, limit, offset int) []*Allocation {
	if offset >= len(items) {
		return []*Allocation{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// Update applies req. The slot set is re-checked against occupancy, without
// the record's own reservation, whenever slots, date or room change or the
// record is reactivated, and only while the record can hold slots.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Allocation, error) {
	var extra []uuid.UUID
	if req.RoomID != nil {
		extra = append(extra, *req.RoomID)
	}
	current, release, err := s.lockAllocation(ctx, id, extra...)
	if err != nil {
		return nil, err
	}
	defer release()

	var a *Allocation
	var catalog map[uuid.UUID]*theatre.OTSlot
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.RoomID != current.RoomID {
			return fmt.Errorf("allocation %s changed room under lock", id)
		}
		if err := s.decorate(ctx, a); err != nil {
			return err
		}
		before := a.clone()
		if err := s.applyPatch(ctx, a, req); err != nil {
			return err
		}

		roomChanged := a.RoomID != before.RoomID
		slotsChanged := req.SlotIDs != nil && !sameSlots(a.SlotIDs, before.SlotIDs)
		dateChanged := a.AllocationDate != before.AllocationDate
		reactivated := a.IsActive() && !before.IsActive()

		if roomChanged || slotsChanged {
			catalog, err = s.checkRoomSlots(ctx, a)
			if err != nil {
				return err
			}
		}
		if (roomChanged || slotsChanged || dateChanged || reactivated) && a.IsActive() && a.StatusOverride == nil {
			if err := s.checkConflicts(ctx, a); err != nil {
				return err
			}
		}
		return s.repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	if catalog != nil {
		s.deriver.Apply(a, catalog)
	} else if err := s.decorate(ctx, a); err != nil {
		return nil, err
	}
	s.publish(ctx, events.AllocationUpdated, a)
	return a, nil
}

func sameSlots(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !hasSlot(b, id) {
			return false
		}
	}
	return true
}

// applyPatch copies req onto a and validates what changed. a.OperationStatus
// must already hold the derived status.
func (s *Service) applyPatch(ctx context.Context, a *Allocation, req UpdateRequest) error {
	if req.provided() {
		src, err := req.Source()
		if err != nil {
			return err
		}
		patientID, err := s.resolver.Resolve(ctx, src)
		if err != nil {
			return err
		}
		a.Source = src
		a.PatientID = patientID
	}
	if req.RoomID != nil {
		if *req.RoomID == uuid.Nil {
			return apperr.MissingField("room_id")
		}
		a.RoomID = *req.RoomID
	}
	if req.SlotIDs != nil {
		a.SlotIDs = dedupe(*req.SlotIDs)
	}
	if req.AllocationDate != nil {
		if req.AllocationDate.IsZero() {
			return apperr.MissingField("allocation_date")
		}
		a.AllocationDate = *req.AllocationDate
	}

	staff := []struct {
		field string
		in    *uuid.UUID
		dst   **uuid.UUID
	}{
		{"assistant_doctor_id", req.AssistantDoctorID, &a.AssistantDoctorID},
		{"anaesthetist_id", req.AnaesthetistID, &a.AnaesthetistID},
		{"nurse_id", req.NurseID, &a.NurseID},
	}
	if req.LeadSurgeonID != nil {
		if *req.LeadSurgeonID == uuid.Nil {
			return apperr.MissingField("lead_surgeon_id")
		}
		if err := s.checkStaff(ctx, "lead_surgeon_id", req.LeadSurgeonID); err != nil {
			return err
		}
		a.LeadSurgeonID = *req.LeadSurgeonID
	}
	for _, st := range staff {
		if st.in == nil {
			continue
		}
		if err := s.checkStaff(ctx, st.field, st.in); err != nil {
			return err
		}
		id := *st.in
		*st.dst = &id
	}
	if req.BillID != nil {
		if err := s.checkBill(ctx, req.BillID); err != nil {
			return err
		}
		a.BillID = req.BillID
	}

	if req.DurationMinutes != nil {
		a.DurationMinutes = req.DurationMinutes
	}
	if req.PlannedStart != nil {
		a.PlannedStart = req.PlannedStart
	}
	if req.PlannedEnd != nil {
		a.PlannedEnd = req.PlannedEnd
	}
	if req.ActualStart != nil {
		a.ActualStart = req.ActualStart
	}
	if req.ActualEnd != nil {
		a.ActualEnd = req.ActualEnd
	}
	if err := checkTimes(a); err != nil {
		return err
	}
	if req.OperationDescription != nil {
		a.OperationDescription = *req.OperationDescription
	}
	if req.PreOperationNotes != nil {
		a.PreOperationNotes = *req.PreOperationNotes
	}
	if req.PostOperationNotes != nil {
		a.PostOperationNotes = *req.PostOperationNotes
	}
	if req.RecordStatus != nil {
		if *req.RecordStatus != RecordActive && *req.RecordStatus != RecordInActive {
			return apperr.Validation("record_status", "invalid record status: %s", *req.RecordStatus)
		}
		a.RecordStatus = *req.RecordStatus
	}
	if req.OperationStatus != nil {
		if err := s.applyOverride(a, *req.OperationStatus); err != nil {
			return err
		}
	}
	return nil
}

// applyOverride sets a manual status. Only Cancelled and Postponed can be
// set, only from a live Scheduled or InProgress, and never changed after.
func (s *Service) applyOverride(a *Allocation, st Status) error {
	if a.StatusOverride != nil {
		if *a.StatusOverride == st {
			return nil
		}
		return apperr.Validation("operation_status", "allocation is already %s", *a.StatusOverride)
	}
	if !st.IsOverride() {
		if st == a.OperationStatus {
			return nil
		}
		return apperr.Validation("operation_status", "%s is derived from the clock and cannot be set", st)
	}
	if !a.OperationStatus.Holds() {
		return apperr.Validation("operation_status", "cannot mark a %s allocation as %s", a.OperationStatus, st)
	}
	a.StatusOverride = &st
	s.logger.Info().
		Str("allocation_id", a.ID.String()).
		Str("from", string(a.OperationStatus)).
		Str("to", string(st)).
		Msg("ot allocation status overridden")
	return nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Allocation, error) {
	st := StatusCancelled
	return s.Update(ctx, id, UpdateRequest{OperationStatus: &st})
}

func (s *Service) Postpone(ctx context.Context, id uuid.UUID) (*Allocation, error) {
	st := StatusPostponed
	return s.Update(ctx, id, UpdateRequest{OperationStatus: &st})
}

// Delete removes the allocation. Its slots are free on the next projection;
// stored documents are removed best effort.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	a, release, err := s.lockAllocation(ctx, id)
	if err != nil {
		return err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	release()
	if err != nil {
		return err
	}

	s.removeDocuments(ctx, id)
	s.logger.Info().
		Str("allocation_id", id.String()).
		Str("room_id", a.RoomID.String()).
		Int("slots_freed", len(a.SlotIDs)).
		Msg("ot allocation deleted")
	s.publish(ctx, events.AllocationDeleted, a)
	return nil
}

func (s *Service) removeDocuments(ctx context.Context, id uuid.UUID) {
	docs, err := s.blobs.ListByAllocation(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Str("allocation_id", id.String()).Msg("list allocation documents")
		return
	}
	for _, d := range docs {
		if err := s.blobs.Delete(ctx, id, d.ID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
			s.logger.Warn().Err(err).Str("allocation_id", id.String()).Str("document_id", d.ID.String()).Msg("delete allocation document")
		}
	}
}

// Duplicate re-books the patient, room, staff, planned times and notes of an
// existing allocation as a fresh booking. Slots come from req, never from the
// source.
func (s *Service) Duplicate(ctx context.Context, sourceID uuid.UUID, req DuplicateRequest) (*Allocation, error) {
	src, err := s.repo.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	date := req.AllocationDate
	if date.IsZero() {
		date = clock.Today(s.deriver.Clock)
	}
	source := src.Source
	cr := CreateRequest{
		SourceFields:         SourceFields{PatientSource: &source},
		RoomID:               src.RoomID,
		SlotIDs:              req.SlotIDs,
		LeadSurgeonID:        src.LeadSurgeonID,
		AssistantDoctorID:    src.AssistantDoctorID,
		AnaesthetistID:       src.AnaesthetistID,
		NurseID:              src.NurseID,
		AllocationDate:       date,
		DurationMinutes:      src.DurationMinutes,
		PlannedStart:         src.PlannedStart,
		PlannedEnd:           src.PlannedEnd,
		OperationDescription: src.OperationDescription,
		PreOperationNotes:    src.PreOperationNotes,
		PostOperationNotes:   src.PostOperationNotes,
	}
	a, err := s.Create(ctx, cr)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("allocation_id", a.ID.String()).Str("source_id", sourceID.String()).Msg("ot allocation duplicated")
	return a, nil
}

// ListSlots is the per-date occupancy of a room. A zero date means today.
func (s *Service) ListSlots(ctx context.Context, roomID uuid.UUID, date clock.Date) ([]SlotView, error) {
	if date.IsZero() {
		date = clock.Today(s.deriver.Clock)
	}
	return s.projector.ProjectOccupancy(ctx, roomID, date, uuid.Nil)
}
