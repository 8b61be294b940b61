package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/threatmap/internal/models"
	"github.com/starford/threatmap/internal/store"
)

type scanner interface {
	Scan(dest ...any) error
}

const threatColumns = `id, name, COALESCE(description, ''), COALESCE(severity, ''),
	COALESCE(domain, ''), COALESCE(created_date, '')`

const mitigationColumns = `m.id, COALESCE(m.threat_id, ''), m.name, COALESCE(m.description, ''),
	COALESCE(m.status, ''), COALESCE(m.domain, ''), COALESCE(m.created_date, '')`

// UpsertThreat inserts or replaces a threat.
func (db *DB) UpsertThreat(ctx context.Context, t models.Threat) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO threats (id, name, description, severity, domain, created_date)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name         = excluded.name,
			description  = excluded.description,
			severity     = excluded.severity,
			domain       = excluded.domain,
			created_date = excluded.created_date
	`, t.ID, t.Name, t.Description, string(t.Severity), t.Domain, models.FormatTimestamp(models.Now()))
	if err != nil {
		return fmt.Errorf("sqlitestore: upsert threat %s: %w", t.ID, err)
	}
	return nil
}

// GetThreat returns one threat or store.ErrNotFound.
func (db *DB) GetThreat(ctx context.Context, id string) (models.Threat, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+threatColumns+` FROM threats WHERE id = ?`, id)
	t, err := scanThreat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Threat{}, fmt.Errorf("threat %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return models.Threat{}, fmt.Errorf("sqlitestore: get threat %s: %w", id, err)
	}
	return t, nil
}

// ListThreats returns every threat ordered by id.
func (db *DB) ListThreats(ctx context.Context) ([]models.Threat, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+threatColumns+` FROM threats ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list threats: %w", err)
	}
	defer rows.Close()

	out := []models.Threat{}
	for rows.Next() {
		t, err := scanThreat(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: list threats: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteThreat removes the threat's mitigations and then the threat in one
// transaction. Mitigations pointing at a missing threat are still removed
// before ErrNotFound is returned.
func (db *DB) DeleteThreat(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM mitigations WHERE threat_id = ?`, id); err != nil {
		return fmt.Errorf("sqlitestore: delete mitigations of %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM threats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete threat %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit delete threat %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("threat %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// UpsertMitigation inserts or replaces a mitigation.
func (db *DB) UpsertMitigation(ctx context.Context, m models.Mitigation) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO mitigations (id, threat_id, name, description, status, domain, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			threat_id    = excluded.threat_id,
			name         = excluded.name,
			description  = excluded.description,
			status       = excluded.status,
			domain       = excluded.domain,
			created_date = excluded.created_date
	`, m.ID, m.ThreatID, m.Name, m.Description, string(m.Status), m.Domain, models.FormatTimestamp(models.Now()))
	if err != nil {
		return fmt.Errorf("sqlitestore: upsert mitigation %s: %w", m.ID, err)
	}
	return nil
}

// GetMitigation returns one mitigation or store.ErrNotFound.
func (db *DB) GetMitigation(ctx context.Context, id string) (models.Mitigation, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+mitigationColumns+` FROM mitigations m WHERE m.id = ?`, id)
	m, err := scanMitigation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Mitigation{}, fmt.Errorf("mitigation %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return models.Mitigation{}, fmt.Errorf("sqlitestore: get mitigation %s: %w", id, err)
	}
	return m, nil
}

// ListMitigationsForThreat returns the threat's mitigations ordered by id.
func (db *DB) ListMitigationsForThreat(ctx context.Context, threatID string) ([]models.Mitigation, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+mitigationColumns+` FROM mitigations m WHERE m.threat_id = ? ORDER BY m.id`, threatID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list mitigations of %s: %w", threatID, err)
	}
	defer rows.Close()

	out := []models.Mitigation{}
	for rows.Next() {
		m, err := scanMitigation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: list mitigations of %s: %w", threatID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListAllMitigations returns every mitigation joined with its threat name.
func (db *DB) ListAllMitigations(ctx context.Context) ([]models.MitigationWithThreat, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+mitigationColumns+`, COALESCE(t.name, '')
		FROM mitigations m
		LEFT JOIN threats t ON m.threat_id = t.id
		ORDER BY m.id`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list all mitigations: %w", err)
	}
	defer rows.Close()

	out := []models.MitigationWithThreat{}
	for rows.Next() {
		var (
			m       models.MitigationWithThreat
			status  string
			created string
		)
		if err := rows.Scan(&m.ID, &m.ThreatID, &m.Name, &m.Description, &status, &m.Domain, &created, &m.ThreatName); err != nil {
			return nil, fmt.Errorf("sqlitestore: list all mitigations: %w", err)
		}
		m.Status = models.Status(status)
		if m.CreatedDate, err = models.ParseTimestamp(created); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMitigation removes one mitigation.
func (db *DB) DeleteMitigation(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM mitigations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete mitigation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mitigation %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// UpsertSubdomain inserts or replaces a subdomain.
func (db *DB) UpsertSubdomain(ctx context.Context, s models.Subdomain) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO subdomains (id, parent_domain, name, description, created_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_domain = excluded.parent_domain,
			name          = excluded.name,
			description   = excluded.description,
			created_date  = excluded.created_date
	`, s.ID, s.ParentDomain, s.Name, s.Description, models.FormatTimestamp(models.Now()))
	if err != nil {
		return fmt.Errorf("sqlitestore: upsert subdomain %s: %w", s.ID, err)
	}
	return nil
}

// ListSubdomains returns subdomains ordered by parent domain and name,
// optionally filtered by parent.
func (db *DB) ListSubdomains(ctx context.Context, parent string) ([]models.Subdomain, error) {
	query := `SELECT id, COALESCE(parent_domain, ''), name, COALESCE(description, ''), COALESCE(created_date, '')
		FROM subdomains`
	var args []any
	if parent != "" {
		query += ` WHERE parent_domain = ?`
		args = append(args, parent)
	}
	query += ` ORDER BY parent_domain, name, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list subdomains: %w", err)
	}
	defer rows.Close()

	out := []models.Subdomain{}
	for rows.Next() {
		var (
			s       models.Subdomain
			created string
		)
		if err := rows.Scan(&s.ID, &s.ParentDomain, &s.Name, &s.Description, &created); err != nil {
			return nil, fmt.Errorf("sqlitestore: list subdomains: %w", err)
		}
		if s.CreatedDate, err = models.ParseTimestamp(created); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertIteration stores a snapshot under name. The row keeps its id when it
// is overwritten.
func (db *DB) UpsertIteration(ctx context.Context, name, description string, data []byte) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO iterations (name, description, created_date, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description  = excluded.description,
			created_date = excluded.created_date,
			data         = excluded.data
	`, name, description, models.FormatTimestamp(models.Now()), string(data))
	if err != nil {
		return fmt.Errorf("sqlitestore: save iteration %q: %w", name, err)
	}
	return nil
}

// LoadIteration returns the stored snapshot bytes or store.ErrNotFound.
func (db *DB) LoadIteration(ctx context.Context, name string) ([]byte, error) {
	var data sql.NullString
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM iterations WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("iteration %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load iteration %q: %w", name, err)
	}
	return []byte(data.String), nil
}

// ListIterations returns saved iterations, newest first.
func (db *DB) ListIterations(ctx context.Context) ([]models.IterationInfo, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT name, COALESCE(description, ''), COALESCE(created_date, '')
		FROM iterations
		ORDER BY created_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list iterations: %w", err)
	}
	defer rows.Close()

	out := []models.IterationInfo{}
	for rows.Next() {
		var (
			it      models.IterationInfo
			created string
		)
		if err := rows.Scan(&it.Name, &it.Description, &created); err != nil {
			return nil, fmt.Errorf("sqlitestore: list iterations: %w", err)
		}
		if it.CreatedDate, err = models.ParseTimestamp(created); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanThreat(row scanner) (models.Threat, error) {
	var (
		t        models.Threat
		severity string
		created  string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &severity, &t.Domain, &created); err != nil {
		return models.Threat{}, err
	}
	t.Severity = models.Severity(severity)
	var err error
	if t.CreatedDate, err = models.ParseTimestamp(created); err != nil {
		return models.Threat{}, err
	}
	return t, nil
}

func scanMitigation(row scanner) (models.Mitigation, error) {
	var (
		m       models.Mitigation
		status  string
		created string
	)
	if err := row.Scan(&m.ID, &m.ThreatID, &m.Name, &m.Description, &status, &m.Domain, &created); err != nil {
		return models.Mitigation{}, err
	}
	m.Status = models.Status(status)
	var err error
	if m.CreatedDate, err = models.ParseTimestamp(created); err != nil {
		return models.Mitigation{}, err
	}
	return m, nil
}
