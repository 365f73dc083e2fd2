package allocation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/otsched/internal/platform/apperr"
	"github.com/ehr/otsched/internal/platform/clock"
	"github.com/ehr/otsched/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type allocationRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &allocationRepoPG{pool: pool} }

func (r *allocationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const allocCols = `a.id, a.patient_id, a.source_kind, a.source_id, a.room_id, a.lead_surgeon_id,
	a.assistant_doctor_id, a.anaesthetist_id, a.nurse_id, a.allocation_date, a.duration_minutes,
	a.planned_start, a.planned_end, a.actual_start, a.actual_end,
	COALESCE(a.operation_description, ''), a.status_override,
	COALESCE(a.pre_operation_notes, ''), COALESCE(a.post_operation_notes, ''),
	a.documents_ref, a.bill_id, a.record_status, a.created_at, a.updated_at,
	COALESCE((SELECT array_agg(s.slot_id ORDER BY os.start_time, os.slot_number)
		FROM ot_allocation_slot s JOIN ot_slot os ON os.id = s.slot_id
		WHERE s.allocation_id = a.id), '{}')`

func (r *allocationRepoPG) scanAllocation(row pgx.Row) (*Allocation, error) {
	var a Allocation
	var kind string
	var date pgtype.Date
	var plannedStart, plannedEnd pgtype.Time
	var override *string
	err := row.Scan(&a.ID, &a.PatientID, &kind, &a.Source.ID, &a.RoomID, &a.LeadSurgeonID,
		&a.AssistantDoctorID, &a.AnaesthetistID, &a.NurseID, &date, &a.DurationMinutes,
		&plannedStart, &plannedEnd, &a.ActualStart, &a.ActualEnd,
		&a.OperationDescription, &override,
		&a.PreOperationNotes, &a.PostOperationNotes,
		&a.DocumentsRef, &a.BillID, &a.RecordStatus, &a.CreatedAt, &a.UpdatedAt,
		&a.SlotIDs)
	if err != nil {
		return nil, err
	}
	a.Source.Kind = SourceKind(kind)
	a.AllocationDate = db.FromPGDate(date)
	a.PlannedStart = db.FromPGTimePtr(plannedStart)
	a.PlannedEnd = db.FromPGTimePtr(plannedEnd)
	if override != nil {
		st := Status(*override)
		a.StatusOverride = &st
	}
	return &a, nil
}

func overrideArg(a *Allocation) interface{} {
	if a.StatusOverride == nil {
		return nil
	}
	return string(*a.StatusOverride)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (r *allocationRepoPG) writeSlots(ctx context.Context, a *Allocation) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM ot_allocation_slot WHERE allocation_id = $1`, a.ID); err != nil {
		return err
	}
	if len(a.SlotIDs) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO ot_allocation_slot (allocation_id, slot_id)
		SELECT $1, unnest($2::uuid[])`, a.ID, a.SlotIDs)
	return err
}

func writeErr(err error) error {
	if db.IsForeignKeyViolation(err) {
		return apperr.Validation("", "allocation references a missing room or slot")
	}
	return err
}

// Create and Update write the row and its slot set; callers run them inside
// a transaction.
func (r *allocationRepoPG) Create(ctx context.Context, a *Allocation) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ot_allocation (id, patient_id, source_kind, source_id, room_id, lead_surgeon_id,
			assistant_doctor_id, anaesthetist_id, nurse_id, allocation_date, duration_minutes,
			planned_start, planned_end, actual_start, actual_end, operation_description,
			status_override, pre_operation_notes, post_operation_notes, documents_ref, bill_id, record_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, string(a.Source.Kind), a.Source.ID, a.RoomID, a.LeadSurgeonID,
		a.AssistantDoctorID, a.AnaesthetistID, a.NurseID, db.PGDate(a.AllocationDate), a.DurationMinutes,
		db.PGTimePtr(a.PlannedStart), db.PGTimePtr(a.PlannedEnd), a.ActualStart, a.ActualEnd,
		nullable(a.OperationDescription), overrideArg(a),
		nullable(a.PreOperationNotes), nullable(a.PostOperationNotes),
		a.DocumentsRef, a.BillID, a.RecordStatus).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return writeErr(err)
	}
	return writeErr(r.writeSlots(ctx, a))
}

func (r *allocationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Allocation, error) {
	a, err := r.scanAllocation(r.conn(ctx).QueryRow(ctx, `SELECT `+allocCols+` FROM ot_allocation a WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("allocation", id)
	}
	return a, err
}

func (r *allocationRepoPG) Update(ctx context.Context, a *Allocation) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE ot_allocation SET patient_id=$2, source_kind=$3, source_id=$4, room_id=$5, lead_surgeon_id=$6,
			assistant_doctor_id=$7, anaesthetist_id=$8, nurse_id=$9, allocation_date=$10, duration_minutes=$11,
			planned_start=$12, planned_end=$13, actual_start=$14, actual_end=$15, operation_description=$16,
			status_override=$17, pre_operation_notes=$18, post_operation_notes=$19, documents_ref=$20,
			bill_id=$21, record_status=$22, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.PatientID, string(a.Source.Kind), a.Source.ID, a.RoomID, a.LeadSurgeonID,
		a.AssistantDoctorID, a.AnaesthetistID, a.NurseID, db.PGDate(a.AllocationDate), a.DurationMinutes,
		db.PGTimePtr(a.PlannedStart), db.PGTimePtr(a.PlannedEnd), a.ActualStart, a.ActualEnd,
		nullable(a.OperationDescription), overrideArg(a),
		nullable(a.PreOperationNotes), nullable(a.PostOperationNotes),
		a.DocumentsRef, a.BillID, a.RecordStatus).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("allocation", a.ID)
	}
	if err != nil {
		return writeErr(err)
	}
	return writeErr(r.writeSlots(ctx, a))
}

// Delete removes the row; the slot rows go with it via ON DELETE CASCADE.
func (r *allocationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM ot_allocation WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("allocation", id)
	}
	return nil
}

func (r *allocationRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Allocation, int, error) {
	var where []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.RoomID != nil {
		add("a.room_id = $%d", *f.RoomID)
	}
	if !f.Date.IsZero() {
		add("a.allocation_date = $%d", db.PGDate(f.Date))
	}
	if f.PatientID != nil {
		add("a.patient_id = $%d", *f.PatientID)
	}
	if f.SurgeonID != nil {
		add("a.lead_surgeon_id = $%d", *f.SurgeonID)
	}
	if f.RecordStatus != "" {
		add("a.record_status = $%d", f.RecordStatus)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ot_allocation a`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	var limitArg interface{}
	if limit > 0 {
		limitArg = limit
	}
	args = append(args, limitArg, offset)
	query := fmt.Sprintf(`SELECT `+allocCols+` FROM ot_allocation a%s
		ORDER BY a.allocation_date, a.created_at, a.id LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))
	items, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *allocationRepoPG) ListByRoomDate(ctx context.Context, roomID uuid.UUID, date clock.Date) ([]*Allocation, error) {
	return r.query(ctx, `SELECT `+allocCols+` FROM ot_allocation a
		WHERE a.room_id = $1 AND a.allocation_date = $2
		ORDER BY a.created_at, a.id`, roomID, db.PGDate(date))
}

func (r *allocationRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Allocation, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Allocation{}
	for rows.Next() {
		a, err := r.scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
