// Package store persists ventures, KPIs and worksheets in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iwvelando/venture-calc/internal/worksheet"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = worksheet.ErrNotFound

const schema = `
CREATE TABLE IF NOT EXISTS ventures (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	stage TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kpis (
	id TEXT PRIMARY KEY,
	venture_id TEXT NOT NULL REFERENCES ventures(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	value REAL NOT NULL,
	target REAL NOT NULL DEFAULT 0,
	unit TEXT NOT NULL DEFAULT '',
	confidence TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kpis_venture ON kpis(venture_id);

CREATE TABLE IF NOT EXISTS worksheets (
	id TEXT PRIMARY KEY,
	venture_id TEXT REFERENCES ventures(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	inputs TEXT NOT NULL,
	outputs TEXT,
	error TEXT NOT NULL DEFAULT '',
	missing TEXT NOT NULL DEFAULT '[]',
	confidence TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_worksheets_venture ON worksheets(venture_id);
`

const timeLayout = time.RFC3339Nano

// Store is a SQLite-backed repository.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema. The special path ":memory:" keeps everything in memory.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Debug("opened store",
		zap.String("op", "store.Open"),
		zap.String("path", path),
	)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return t, nil
}

func requireAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

// CreateVenture inserts v.
func (s *Store) CreateVenture(ctx context.Context, v worksheet.Venture) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ventures (id, name, description, stage, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Description, v.Stage, formatTime(v.CreatedAt), formatTime(v.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert venture: %w", err)
	}
	return nil
}

// UpdateVenture overwrites the mutable fields of v.
func (s *Store) UpdateVenture(ctx context.Context, v worksheet.Venture) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ventures SET name = ?, description = ?, stage = ?, updated_at = ? WHERE id = ?`,
		v.Name, v.Description, v.Stage, formatTime(v.UpdatedAt), v.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update venture: %w", err)
	}
	return requireAffected(res, "venture", v.ID)
}

// GetVenture loads one venture.
func (s *Store) GetVenture(ctx context.Context, id string) (worksheet.Venture, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, stage, created_at, updated_at FROM ventures WHERE id = ?`, id)
	v, err := scanVenture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return worksheet.Venture{}, fmt.Errorf("venture %s: %w", id, ErrNotFound)
	}
	return v, err
}

// ListVentures returns every venture, oldest first.
func (s *Store) ListVentures(ctx context.Context) ([]worksheet.Venture, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, stage, created_at, updated_at FROM ventures ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ventures: %w", err)
	}
	defer rows.Close()

	ventures := []worksheet.Venture{}
	for rows.Next() {
		v, err := scanVenture(rows)
		if err != nil {
			return nil, err
		}
		ventures = append(ventures, v)
	}
	return ventures, rows.Err()
}

// DeleteVenture removes a venture along with its KPIs and worksheets.
func (s *Store) DeleteVenture(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ventures WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete venture: %w", err)
	}
	return requireAffected(res, "venture", id)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVenture(row scanner) (worksheet.Venture, error) {
	var v worksheet.Venture
	var created, updated string
	if err := row.Scan(&v.ID, &v.Name, &v.Description, &v.Stage, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return v, err
		}
		return v, fmt.Errorf("failed to scan venture: %w", err)
	}
	var err error
	if v.CreatedAt, err = parseTime(created); err != nil {
		return v, err
	}
	if v.UpdatedAt, err = parseTime(updated); err != nil {
		return v, err
	}
	return v, nil
}

// UpsertKPI inserts k or replaces the KPI with the same ID.
func (s *Store) UpsertKPI(ctx context.Context, k worksheet.KPI) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kpis (id, venture_id, name, value, target, unit, confidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			value = excluded.value,
			target = excluded.target,
			unit = excluded.unit,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at`,
		k.ID, k.VentureID, k.Name, k.Value, k.Target, k.Unit, string(k.Confidence), formatTime(k.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert kpi: %w", err)
	}
	return nil
}

// GetKPI loads one KPI.
func (s *Store) GetKPI(ctx context.Context, id string) (worksheet.KPI, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, venture_id, name, value, target, unit, confidence, updated_at FROM kpis WHERE id = ?`, id)
	k, err := scanKPI(row)
	if errors.Is(err, sql.ErrNoRows) {
		return worksheet.KPI{}, fmt.Errorf("kpi %s: %w", id, ErrNotFound)
	}
	return k, err
}

// ListKPIs returns the KPIs of a venture ordered by name.
func (s *Store) ListKPIs(ctx context.Context, ventureID string) ([]worksheet.KPI, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, venture_id, name, value, target, unit, confidence, updated_at
		FROM kpis WHERE venture_id = ? ORDER BY name, id`, ventureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query kpis: %w", err)
	}
	defer rows.Close()

	kpis := []worksheet.KPI{}
	for rows.Next() {
		k, err := scanKPI(rows)
		if err != nil {
			return nil, err
		}
		kpis = append(kpis, k)
	}
	return kpis, rows.Err()
}

// DeleteKPI removes one KPI.
func (s *Store) DeleteKPI(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kpis WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete kpi: %w", err)
	}
	return requireAffected(res, "kpi", id)
}

func scanKPI(row scanner) (worksheet.KPI, error) {
	var k worksheet.KPI
	var confidence, updated string
	if err := row.Scan(&k.ID, &k.VentureID, &k.Name, &k.Value, &k.Target, &k.Unit, &confidence, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return k, err
		}
		return k, fmt.Errorf("failed to scan kpi: %w", err)
	}
	k.Confidence = worksheet.Confidence(confidence)
	var err error
	k.UpdatedAt, err = parseTime(updated)
	return k, err
}

// CreateWorksheet inserts w.
func (s *Store) CreateWorksheet(ctx context.Context, w worksheet.Worksheet) error {
	args, err := worksheetArgs(w)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO worksheets (venture_id, name, kind, inputs, outputs, error, missing, confidence, updated_at, created_at, id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(args, formatTime(w.CreatedAt), w.ID)...,
	)
	if err != nil {
		return fmt.Errorf("failed to insert worksheet: %w", err)
	}
	return nil
}

// UpdateWorksheet overwrites everything except the creation time.
func (s *Store) UpdateWorksheet(ctx context.Context, w worksheet.Worksheet) error {
	args, err := worksheetArgs(w)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE worksheets SET venture_id = ?, name = ?, kind = ?, inputs = ?, outputs = ?, error = ?,
			missing = ?, confidence = ?, updated_at = ?
		WHERE id = ?`,
		append(args, w.ID)...,
	)
	if err != nil {
		return fmt.Errorf("failed to update worksheet: %w", err)
	}
	return requireAffected(res, "worksheet", w.ID)
}

func worksheetArgs(w worksheet.Worksheet) ([]interface{}, error) {
	inputs := w.Inputs
	if inputs == nil {
		inputs = map[string]interface{}{}
	}
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode worksheet inputs: %w", err)
	}
	missing := w.Missing
	if missing == nil {
		missing = []string{}
	}
	missingJSON, err := json.Marshal(missing)
	if err != nil {
		return nil, fmt.Errorf("failed to encode missing fields: %w", err)
	}

	var ventureID, outputs sql.NullString
	if w.VentureID != "" {
		ventureID = sql.NullString{String: w.VentureID, Valid: true}
	}
	if len(w.Outputs) > 0 {
		outputs = sql.NullString{String: string(w.Outputs), Valid: true}
	}

	return []interface{}{
		ventureID, w.Name, w.Kind, string(inputsJSON), outputs, w.Error, string(missingJSON),
		string(w.Confidence), formatTime(w.UpdatedAt),
	}, nil
}

const worksheetColumns = `id, venture_id, name, kind, inputs, outputs, error, missing, confidence, created_at, updated_at`

// GetWorksheet loads one worksheet.
func (s *Store) GetWorksheet(ctx context.Context, id string) (worksheet.Worksheet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+worksheetColumns+` FROM worksheets WHERE id = ?`, id)
	w, err := scanWorksheet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return worksheet.Worksheet{}, fmt.Errorf("worksheet %s: %w", id, ErrNotFound)
	}
	return w, err
}

// ListWorksheets returns worksheets oldest first. A non-empty ventureID
// restricts the list to that venture.
func (s *Store) ListWorksheets(ctx context.Context, ventureID string) ([]worksheet.Worksheet, error) {
	query := `SELECT ` + worksheetColumns + ` FROM worksheets`
	var args []interface{}
	if ventureID != "" {
		query += ` WHERE venture_id = ?`
		args = append(args, ventureID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query worksheets: %w", err)
	}
	defer rows.Close()

	worksheets := []worksheet.Worksheet{}
	for rows.Next() {
		w, err := scanWorksheet(rows)
		if err != nil {
			return nil, err
		}
		worksheets = append(worksheets, w)
	}
	return worksheets, rows.Err()
}

// DeleteWorksheet removes one worksheet.
func (s *Store) DeleteWorksheet(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM worksheets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete worksheet: %w", err)
	}
	return requireAffected(res, "worksheet", id)
}

func scanWorksheet(row scanner) (worksheet.Worksheet, error) {
	var w worksheet.Worksheet
	var ventureID, outputs sql.NullString
	var inputs, missing, confidence, created, updated string
	if err := row.Scan(&w.ID, &ventureID, &w.Name, &w.Kind, &inputs, &outputs, &w.Error, &missing,
		&confidence, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return w, err
		}
		return w, fmt.Errorf("failed to scan worksheet: %w", err)
	}

	w.VentureID = ventureID.String
	w.Confidence = worksheet.Confidence(confidence)
	if outputs.Valid {
		w.Outputs = json.RawMessage(outputs.String)
	}
	if err := json.Unmarshal([]byte(inputs), &w.Inputs); err != nil {
		return w, fmt.Errorf("failed to decode worksheet inputs: %w", err)
	}
	if err := json.Unmarshal([]byte(missing), &w.Missing); err != nil {
		return w, fmt.Errorf("failed to decode missing fields: %w", err)
	}
	if len(w.Missing) == 0 {
		w.Missing = nil
	}

	var err error
	if w.CreatedAt, err = parseTime(created); err != nil {
		return w, err
	}
	if w.UpdatedAt, err = parseTime(updated); err != nil {
		return w, err
	}
	return w, nil
}
