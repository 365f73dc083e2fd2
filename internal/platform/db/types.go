package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ehr/otsched/internal/platform/clock"
)

// PostgreSQL error codes the repositories react to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}

// TIME and DATE columns carry no zone; values are read and written as IST
// wall-clock quantities.

func PGTime(t clock.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Microseconds(), Valid: true}
}

func PGTimePtr(t *clock.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return PGTime(*t)
}

func FromPGTime(t pgtype.Time) clock.TimeOfDay {
	return clock.TimeOfDayFromMicroseconds(t.Microseconds)
}

func FromPGTimePtr(t pgtype.Time) *clock.TimeOfDay {
	if !t.Valid {
		return nil
	}
	tod := FromPGTime(t)
	return &tod
}

func PGDate(d clock.Date) pgtype.Date {
	if d.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.UTCMidnight(), Valid: true}
}

func FromPGDate(d pgtype.Date) clock.Date {
	if !d.Valid {
		return clock.Date{}
	}
	return clock.DateFromUTC(d.Time)
}
