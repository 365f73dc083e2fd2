package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/otsched/internal/platform/clock"
	"github.com/ehr/otsched/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type directoryPG struct{ pool *pgxpool.Pool }

func NewDirectoryPG(pool *pgxpool.Pool) Directory { return &directoryPG{pool: pool} }

func (r *directoryPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("query %s: %w", what, err)
}

func (r *directoryPG) Patient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	var mrn *string
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, mrn, full_name, status FROM patient WHERE id = $1`, id).
		Scan(&p.ID, &mrn, &p.FullName, &p.Status)
	if err != nil {
		return nil, notFound(err, "patient")
	}
	if mrn != nil {
		p.MRN = *mrn
	}
	return &p, nil
}

func (r *directoryPG) Staff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	var s Staff
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, full_name, role, status FROM staff WHERE id = $1`, id).
		Scan(&s.ID, &s.FullName, &s.Role, &s.Status)
	if err != nil {
		return nil, notFound(err, "staff")
	}
	return &s, nil
}

func (r *directoryPG) RoomAdmission(ctx context.Context, id uuid.UUID) (*RoomAdmission, error) {
	var a RoomAdmission
	var roomNo, bedNo *string
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, patient_id, room_no, bed_no FROM room_admission WHERE id = $1`, id).
		Scan(&a.ID, &a.PatientID, &roomNo, &bedNo)
	if err != nil {
		return nil, notFound(err, "room admission")
	}
	if roomNo != nil {
		a.RoomNo = *roomNo
	}
	if bedNo != nil {
		a.BedNo = *bedNo
	}
	return &a, nil
}

func (r *directoryPG) OPDAppointment(ctx context.Context, id uuid.UUID) (*OPDAppointment, error) {
	var a OPDAppointment
	var token *string
	var date pgtype.Date
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, patient_id, token_no, appointment_date FROM opd_appointment WHERE id = $1`, id).
		Scan(&a.ID, &a.PatientID, &token, &date)
	if err != nil {
		return nil, notFound(err, "opd appointment")
	}
	if token != nil {
		a.TokenNo = *token
	}
	if date.Valid {
		a.AppointmentDate = clock.DateFromUTC(date.Time)
	}
	return &a, nil
}

func (r *directoryPG) EmergencyBedSlot(ctx context.Context, id uuid.UUID) (*EmergencyBedSlot, error) {
	var b EmergencyBedSlot
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, bed_id, patient_id FROM emergency_bed_slot WHERE id = $1`, id).
		Scan(&b.ID, &b.BedID, &b.PatientID)
	if err != nil {
		return nil, notFound(err, "emergency bed slot")
	}
	return &b, nil
}

func (r *directoryPG) Bill(ctx context.Context, id uuid.UUID) (*Bill, error) {
	var b Bill
	var billNo *string
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, bill_no, patient_id FROM bill WHERE id = $1`, id).
		Scan(&b.ID, &billNo, &b.PatientID)
	if err != nil {
		return nil, notFound(err, "bill")
	}
	if billNo != nil {
		b.BillNo = *billNo
	}
	return &b, nil
}
