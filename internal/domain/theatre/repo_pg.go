package theatre

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
	"github.com/ehr/otsched/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== OT Room Repository ===========

type roomRepoPG struct{ pool *pgxpool.Pool }

func NewRoomRepoPG(pool *pgxpool.Pool) RoomRepository { return &roomRepoPG{pool: pool} }

func (r *roomRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const roomCols = `id, room_number, room_type, name, description, start_time, end_time, status, created_at, updated_at`

func (r *roomRepoPG) scanRoom(row pgx.Row) (*OTRoom, error) {
	var o OTRoom
	var start, end pgtype.Time
	err := row.Scan(&o.ID, &o.RoomNumber, &o.Type, &o.Name, &o.Description,
		&start, &end, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.StartTime = db.FromPGTime(start)
	o.EndTime = db.FromPGTime(end)
	return &o, nil
}

func roomWriteErr(err error, number string) error {
	if db.IsUniqueViolation(err) {
		return apperr.Validation("room_number", "room number %s already exists", number)
	}
	return err
}

func (r *roomRepoPG) Create(ctx context.Context, o *OTRoom) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ot_room (id, room_number, room_type, name, description, start_time, end_time, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		o.ID, o.RoomNumber, o.Type, o.Name, o.Description,
		db.PGTime(o.StartTime), db.PGTime(o.EndTime), o.Status).Scan(&o.CreatedAt, &o.UpdatedAt)
	return roomWriteErr(err, o.RoomNumber)
}

func (r *roomRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*OTRoom, error) {
	o, err := r.scanRoom(r.conn(ctx).QueryRow(ctx, `SELECT `+roomCols+` FROM ot_room WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ot room", id)
	}
	return o, err
}

func (r *roomRepoPG) GetByNumber(ctx context.Context, number string) (*OTRoom, error) {
	o, err := r.scanRoom(r.conn(ctx).QueryRow(ctx, `SELECT `+roomCols+` FROM ot_room WHERE room_number = $1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.ErrNotFound, "room_number", "ot room %s not found", number)
	}
	return o, err
}

func (r *roomRepoPG) Update(ctx context.Context, o *OTRoom) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE ot_room SET room_number=$2, room_type=$3, name=$4, description=$5,
			start_time=$6, end_time=$7, status=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		o.ID, o.RoomNumber, o.Type, o.Name, o.Description,
		db.PGTime(o.StartTime), db.PGTime(o.EndTime), o.Status).Scan(&o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("ot room", o.ID)
	}
	return roomWriteErr(err, o.RoomNumber)
}

func (r *roomRepoPG) List(ctx context.Context, f RoomFilter, limit, offset int) ([]*OTRoom, int, error) {
	var where []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("room_type = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ot_room`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limitArg(limit), offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+roomCols+` FROM ot_room%s ORDER BY room_number LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []*OTRoom{}
	for rows.Next() {
		o, err := r.scanRoom(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

// limitArg turns a non-positive limit into NULL, which postgres reads as
// LIMIT ALL.
func limitArg(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}

// =========== OT Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const slotCols = `id, room_id, slot_number, start_time, end_time, status, created_at, updated_at`

func (r *slotRepoPG) scanSlot(row pgx.Row) (*OTSlot, error) {
	var s OTSlot
	var start, end pgtype.Time
	err := row.Scan(&s.ID, &s.RoomID, &s.SlotNumber, &start, &end, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.StartTime = db.FromPGTime(start)
	s.EndTime = db.FromPGTime(end)
	return &s, nil
}

func slotWriteErr(err error, number int) error {
	if db.IsUniqueViolation(err) {
		return apperr.Validation("slot_number", "slot number %d already exists in this room", number)
	}
	return err
}

func (r *slotRepoPG) Create(ctx context.Context, s *OTSlot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ot_slot (id, room_id, slot_number, start_time, end_time, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		s.ID, s.RoomID, s.SlotNumber, db.PGTime(s.StartTime), db.PGTime(s.EndTime), s.Status).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	return slotWriteErr(err, s.SlotNumber)
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*OTSlot, error) {
	s, err := r.scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM ot_slot WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ot slot", id)
	}
	return s, err
}

func (r *slotRepoPG) Update(ctx context.Context, s *OTSlot) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE ot_slot SET slot_number=$2, start_time=$3, end_time=$4, status=$5, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.SlotNumber, db.PGTime(s.StartTime), db.PGTime(s.EndTime), s.Status).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("ot slot", s.ID)
	}
	return slotWriteErr(err, s.SlotNumber)
}

func (r *slotRepoPG) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*OTSlot, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+slotCols+` FROM ot_slot WHERE room_id = $1 ORDER BY start_time, slot_number`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*OTSlot{}
	for rows.Next() {
		s, err := r.scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *slotRepoPG) CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM ot_slot WHERE room_id = $1`, roomID).Scan(&n)
	return n, err
}
