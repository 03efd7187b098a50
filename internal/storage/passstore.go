package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/valter-silva-au/greenie/pkg/models"
)

// PassStore persists passes and the pilots they belong to.
type PassStore interface {
	SavePass(ctx context.Context, p *models.Pass) error
	GetPass(ctx context.Context, id int64) (*models.Pass, error)
	ListPasses(ctx context.Context, filter models.PassFilter) ([]models.Pass, error)
	ListPilots(ctx context.Context, squadron string) ([]models.Pilot, error)
	AssignPilot(ctx context.Context, passID int64, pilot string) (*models.Pass, error)
	DeletePass(ctx context.Context, id int64) error
	DeleteUnassigned(ctx context.Context, squadron string) (int64, error)
	Close() error
}

// sqlitePassStore is safe for concurrent use; writes are serialised so
// pilot find-or-create never races.
type sqlitePassStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenPassStore opens (creating if needed) the SQLite database at dbPath.
// ":memory:" gives a private in-memory database.
func OpenPassStore(dbPath string) (PassStore, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		connStr = "file::memory:"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening pass store: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening pass store: ping: %w", err)
	}

	pragmas := []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"}
	if dbPath != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("opening pass store: %s: %w", p, err)
		}
	}

	s := &sqlitePassStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening pass store: %w", err)
	}
	return s, nil
}

func (s *sqlitePassStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pilots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		squadron TEXT NOT NULL,
		name TEXT NOT NULL,
		UNIQUE (squadron, name)
	);

	CREATE TABLE IF NOT EXISTS passes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		squadron TEXT NOT NULL,
		logfile_id TEXT,
		pilot_id INTEGER REFERENCES pilots(id),
		time_ms INTEGER NOT NULL,
		ship_name TEXT,
		aircraft_type TEXT,
		grade TEXT NOT NULL,
		score REAL,
		trap INTEGER,
		wire INTEGER,
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_passes_time ON passes(time_ms);
	CREATE INDEX IF NOT EXISTS idx_passes_squadron ON passes(squadron);
	CREATE INDEX IF NOT EXISTS idx_passes_pilot ON passes(pilot_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

func (s *sqlitePassStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SavePass inserts p and sets its ID. A named pilot is looked up within the
// pass's squadron and created on first sight.
func (s *sqlitePassStore) SavePass(ctx context.Context, p *models.Pass) error {
	if p.Squadron == "" {
		return fmt.Errorf("saving pass: squadron must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving pass: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var pilotID sql.NullInt64
	if p.Pilot != nil {
		id, err := findOrCreatePilot(ctx, tx, p.Squadron, *p.Pilot)
		if err != nil {
			return fmt.Errorf("saving pass: %w", err)
		}
		pilotID = sql.NullInt64{Int64: id, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO passes (
			squadron, logfile_id, pilot_id, time_ms, ship_name, aircraft_type,
			grade, score, trap, wire, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Squadron,
		nullString(strPtrOrNil(p.LogfileID)),
		pilotID,
		p.Time.UnixMilli(),
		nullString(p.Ship),
		nullString(p.Aircraft),
		string(p.Grade),
		nullFloat(p.Score),
		nullBool(p.Trap),
		nullInt(p.Wire),
		nullString(p.Notes),
	)
	if err != nil {
		return fmt.Errorf("saving pass: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("saving pass: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving pass: commit: %w", err)
	}
	p.ID = id
	return nil
}

func findOrCreatePilot(ctx context.Context, tx *sql.Tx, squadron, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM pilots WHERE squadron = ? AND name = ?`, squadron, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("finding pilot %q: %w", name, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO pilots (squadron, name) VALUES (?, ?)`, squadron, name)
	if err != nil {
		return 0, fmt.Errorf("creating pilot %q: %w", name, err)
	}
	return res.LastInsertId()
}

const passColumns = `
	p.id, p.squadron, p.logfile_id, pl.name, p.time_ms, p.ship_name, p.aircraft_type,
	p.grade, p.score, p.trap, p.wire, p.notes`

func (s *sqlitePassStore) GetPass(ctx context.Context, id int64) (*models.Pass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPass(ctx, id)
}

func (s *sqlitePassStore) getPass(ctx context.Context, id int64) (*models.Pass, error) {
	passes, err := s.queryPasses(ctx,
		`SELECT `+passColumns+` FROM passes p LEFT JOIN pilots pl ON pl.id = p.pilot_id WHERE p.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting pass %d: %w", id, err)
	}
	if len(passes) == 0 {
		return nil, fmt.Errorf("pass %d: %w", id, ErrNotFound)
	}
	return &passes[0], nil
}

// ListPasses returns passes matching filter, oldest first.
func (s *sqlitePassStore) ListPasses(ctx context.Context, filter models.PassFilter) ([]models.Pass, error) {
	var where []string
	var args []any

	if filter.Squadron != "" {
		where = append(where, "p.squadron = ?")
		args = append(args, filter.Squadron)
	}
	if filter.Pilot != "" {
		where = append(where, "pl.name = ?")
		args = append(args, filter.Pilot)
	}
	if filter.Grade != "" {
		where = append(where, "p.grade = ?")
		args = append(args, string(filter.Grade))
	}
	if filter.Since != nil {
		where = append(where, "p.time_ms >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if filter.Until != nil {
		where = append(where, "p.time_ms < ?")
		args = append(args, filter.Until.UnixMilli())
	}
	if filter.UnassignedOnly {
		where = append(where, "p.pilot_id IS NULL")
	}

	query := `SELECT ` + passColumns + ` FROM passes p LEFT JOIN pilots pl ON pl.id = p.pilot_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.time_ms, p.id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	passes, err := s.queryPasses(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing passes: %w", err)
	}
	return passes, nil
}

func (s *sqlitePassStore) ListPilots(ctx context.Context, squadron string) ([]models.Pilot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, squadron, name FROM pilots`
	var args []any
	if squadron != "" {
		query += ` WHERE squadron = ?`
		args = append(args, squadron)
	}
	query += ` ORDER BY squadron, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pilots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	pilots := []models.Pilot{}
	for rows.Next() {
		var p models.Pilot
		if err := rows.Scan(&p.ID, &p.Squadron, &p.Name); err != nil {
			return nil, fmt.Errorf("listing pilots: %w", err)
		}
		pilots = append(pilots, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing pilots: %w", err)
	}
	return pilots, nil
}

// AssignPilot attaches a pilot to a pass, creating the pilot in the pass's
// squadron if needed. Reassigning an already assigned pass is allowed.
func (s *sqlitePassStore) AssignPilot(ctx context.Context, passID int64, pilot string) (*models.Pass, error) {
	pilot = strings.TrimSpace(pilot)
	if pilot == "" {
		return nil, fmt.Errorf("assigning pilot: name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("assigning pilot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var squadron string
	err = tx.QueryRowContext(ctx, `SELECT squadron FROM passes WHERE id = ?`, passID).Scan(&squadron)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assigning pilot: pass %d: %w", passID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("assigning pilot: %w", err)
	}

	pilotID, err := findOrCreatePilot(ctx, tx, squadron, pilot)
	if err != nil {
		return nil, fmt.Errorf("assigning pilot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE passes SET pilot_id = ? WHERE id = ?`, pilotID, passID); err != nil {
		return nil, fmt.Errorf("assigning pilot: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("assigning pilot: commit: %w", err)
	}

	return s.getPass(ctx, passID)
}

func (s *sqlitePassStore) DeletePass(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM passes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting pass %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting pass %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("deleting pass %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteUnassigned removes every pass of squadron that has no pilot and
// returns how many were removed.
func (s *sqlitePassStore) DeleteUnassigned(ctx context.Context, squadron string) (int64, error) {
	if squadron == "" {
		return 0, fmt.Errorf("deleting unassigned passes: squadron must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM passes WHERE squadron = ? AND pilot_id IS NULL`, squadron)
	if err != nil {
		return 0, fmt.Errorf("deleting unassigned passes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting unassigned passes: %w", err)
	}
	return n, nil
}

// queryPasses scans rows selected with passColumns. Caller must hold s.mu.
func (s *sqlitePassStore) queryPasses(ctx context.Context, query string, args ...any) ([]models.Pass, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	passes := []models.Pass{}
	for rows.Next() {
		var (
			p                      models.Pass
			logfileID, pilot, ship sql.NullString
			aircraft, grade, notes sql.NullString
			timeMS                 int64
			score                  sql.NullFloat64
			trap, wire             sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Squadron, &logfileID, &pilot, &timeMS, &ship, &aircraft,
			&grade, &score, &trap, &wire, &notes); err != nil {
			return nil, err
		}

		p.Time = time.UnixMilli(timeMS).UTC()
		p.LogfileID = logfileID.String
		p.Pilot = stringPtr(pilot)
		p.Ship = stringPtr(ship)
		p.Aircraft = stringPtr(aircraft)
		p.Grade = models.Grade(grade.String)
		p.Notes = stringPtr(notes)
		if score.Valid {
			v := score.Float64
			p.Score = &v
		}
		if trap.Valid {
			v := trap.Int64 != 0
			p.Trap = &v
		}
		if wire.Valid {
			v := int(wire.Int64)
			p.Wire = &v
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return passes, nil
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// nullBool stores a bool as 0/1 the way SQLite expects.
func nullBool(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	if *b {
		return sql.NullInt64{Int64: 1, Valid: true}
	}
	return sql.NullInt64{Int64: 0, Valid: true}
}
