// Package sqlstore keeps reservations in a SQL table whose UNIQUE (fecha, hora)
// constraint is the only thing deciding which of two racing bookings wins.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/jwalitptl/barber-api/internal/model"
	"github.com/jwalitptl/barber-api/internal/repository"
	"github.com/jwalitptl/barber-api/pkg/metrics"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the connection string the store actually uses for cfg.
func DSN(cfg Config) string {
	if cfg.Driver != DriverSQLite || strings.Contains(cfg.DSN, "_busy_timeout") {
		return cfg.DSN
	}
	sep := "?"
	if strings.Contains(cfg.DSN, "?") {
		sep = "&"
	}
	return cfg.DSN + sep + "_busy_timeout=5000"
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if cfg.Driver != DriverPostgres && cfg.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, cfg.Driver, DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// sqlite allows a single writer; funnel everything through one connection.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

type Store struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

var _ repository.ReservationRepository = (*Store)(nil)

func New(db *sqlx.DB, m *metrics.Metrics) *Store {
	return &Store{db: db, metrics: m}
}

func (s *Store) ListSlots(ctx context.Context) (slots []model.Slot, err error) {
	const op = "sqlstore.ListSlots"
	defer s.observe("list_slots", time.Now(), &err)

	if err = s.db.SelectContext(ctx, &slots, `SELECT fecha, hora FROM turnos`); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return slots, nil
}

func (s *Store) ListAll(ctx context.Context) (rows []*model.Reservation, err error) {
	const op = "sqlstore.ListAll"
	defer s.observe("list_all", time.Now(), &err)

	query := `
		SELECT id, fecha, hora, servicio, nombre, telefono, email
		FROM turnos
		ORDER BY fecha ASC, hora ASC
	`
	if err = s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}

// Insert adds the reservation in a single statement. The table's unique
// constraint rejects a second row for the same slot with repository.ErrConflict.
func (s *Store) Insert(ctx context.Context, r model.NewReservation) (id int64, err error) {
	const op = "sqlstore.Insert"
	defer s.observe("insert", time.Now(), &err)

	if blank(r.Date, r.Time, r.Service, r.ClientName, r.ClientPhone) {
		return 0, fmt.Errorf("%s: %w", op, repository.ErrValidation)
	}

	query := s.db.Rebind(`
		INSERT INTO turnos (fecha, hora, servicio, nombre, telefono, email)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err = s.db.QueryRowxContext(ctx, query,
		r.Date,
		r.Time,
		r.Service,
		r.ClientName,
		r.ClientPhone,
		r.ClientEmail,
	).Scan(&id)
	if err != nil {
		if sentinel := classify(err); sentinel != nil {
			return 0, fmt.Errorf("%s: %w", op, sentinel)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (s *Store) DeleteByID(ctx context.Context, id int64) (removed bool, err error) {
	const op = "sqlstore.DeleteByID"
	defer s.observe("delete", time.Now(), &err)

	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM turnos WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: failed to get rows affected: %w", op, err)
	}
	return rows > 0, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// classify maps driver constraint errors onto repository sentinels.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return repository.ErrConflict
		case "23502", "23514":
			return repository.ErrValidation
		}
		return nil
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique:
			return repository.ErrConflict
		case sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintCheck:
			return repository.ErrValidation
		}
	}
	return nil
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func (s *Store) observe(operation string, start time.Time, errp *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.DatabaseLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	status := metrics.Status(*errp)
	if *errp != nil && errors.Is(*errp, repository.ErrConflict) {
		status = "conflict"
	}
	s.metrics.DatabaseOperations.WithLabelValues(operation, status).Inc()
}
