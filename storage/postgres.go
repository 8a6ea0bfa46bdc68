package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"business-searcher/models"
)

// PostgresStore persists listings to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, waits for the database to come up,
// runs schema migrations, and returns a ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return s, nil
}

// NewPostgresStoreFromDB wraps an existing connection without migrating.
// Used by tests.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id              TEXT PRIMARY KEY,
			source          TEXT NOT NULL,
			title           TEXT NOT NULL,
			description     TEXT,
			price           BIGINT,
			revenue         BIGINT,
			ebitda          BIGINT,
			location        TEXT,
			industry        TEXT,
			url             TEXT,
			posted_date     TIMESTAMPTZ,
			ebitda_margin   DOUBLE PRECISION,
			asking_multiple DOUBLE PRECISION,
			raw_data        JSONB,
			status          TEXT NOT NULL DEFAULT 'new',
			first_seen_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at    TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_listings_source   ON listings(source);
		CREATE INDEX IF NOT EXISTS idx_listings_status   ON listings(status);
		CREATE INDEX IF NOT EXISTS idx_listings_location ON listings(location);
		CREATE INDEX IF NOT EXISTS idx_listings_industry ON listings(industry);
	`)
	return err
}

// Exists reports whether a listing with the given id and source is stored.
func (s *PostgresStore) Exists(id, source string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM listings WHERE id = $1 AND source = $2)`,
		id, source,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: exists %s: %w", id, err)
	}
	return exists, nil
}

// Upsert inserts or overwrites the listing in one statement; the row lock
// taken by ON CONFLICT serializes concurrent upserts of the same id.
// Status and first_seen_at are untouched on update.
func (s *PostgresStore) Upsert(l *models.Listing) (*models.StoredListing, bool, error) {
	rawJSON, err := json.Marshal(l.RawData)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: marshal raw_data for %s: %w", l.ID, err)
	}

	var margin, multiple sql.NullFloat64
	if v, ok := l.EbitdaMargin(); ok {
		margin = sql.NullFloat64{Float64: v, Valid: true}
	}
	if v, ok := l.AskingMultiple(); ok {
		multiple = sql.NullFloat64{Float64: v, Valid: true}
	}

	row := s.db.QueryRow(`
		INSERT INTO listings (
			id, source, title, description, price, revenue, ebitda,
			location, industry, url, posted_date,
			ebitda_margin, asking_multiple, raw_data, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title           = EXCLUDED.title,
			description     = EXCLUDED.description,
			price           = EXCLUDED.price,
			revenue         = EXCLUDED.revenue,
			ebitda          = EXCLUDED.ebitda,
			location        = EXCLUDED.location,
			industry        = EXCLUDED.industry,
			url             = EXCLUDED.url,
			posted_date     = EXCLUDED.posted_date,
			ebitda_margin   = EXCLUDED.ebitda_margin,
			asking_multiple = EXCLUDED.asking_multiple,
			raw_data        = EXCLUDED.raw_data,
			last_updated_at = NOW()
		RETURNING (xmax = 0), status, first_seen_at, last_updated_at, processed_at
	`,
		l.ID, l.Source, l.Title, nullStr(l.Description),
		nullInt(l.Price), nullInt(l.Revenue), nullInt(l.Ebitda),
		nullStr(l.Location), nullStr(l.Industry), nullStr(l.URL),
		nullTime(l.PostedDate), margin, multiple, rawJSON, string(models.StatusNew),
	)

	stored := &models.StoredListing{Listing: *l}
	var (
		isNew       bool
		statusStr   string
		processedAt sql.NullTime
	)
	if err := row.Scan(&isNew, &statusStr, &stored.FirstSeenAt, &stored.LastUpdatedAt, &processedAt); err != nil {
		return nil, false, fmt.Errorf("postgres: upsert %s: %w", l.ID, err)
	}

	stored.Status = models.Status(statusStr)
	if processedAt.Valid {
		t := processedAt.Time
		stored.ProcessedAt = &t
	}
	if margin.Valid {
		stored.EbitdaMarginDB = margin.Float64
	}
	if multiple.Valid {
		stored.AskingMultipleDB = multiple.Float64
	}

	return stored, isNew, nil
}

const listingColumns = `
	id, source, title, description, price, revenue, ebitda,
	location, industry, url, posted_date,
	ebitda_margin, asking_multiple, raw_data,
	status, first_seen_at, last_updated_at, processed_at`

// Get returns the stored listing, or nil if absent.
func (s *PostgresStore) Get(id string) (*models.StoredListing, error) {
	row := s.db.QueryRow(`SELECT`+listingColumns+` FROM listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s: %w", id, err)
	}
	return l, nil
}

// SetStatus advances the status inside a transaction, holding the row
// lock so concurrent transitions for one listing serialize.
func (s *PostgresStore) SetStatus(id string, status models.Status, processedAt *time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	var currentStr string
	err = tx.QueryRow(`SELECT status FROM listings WHERE id = $1 FOR UPDATE`, id).Scan(&currentStr)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("postgres: set status: no listing %s", id)
	}
	if err != nil {
		return fmt.Errorf("postgres: set status %s: %w", id, err)
	}

	current, ok := models.ParseStatus(currentStr)
	if !ok {
		return fmt.Errorf("postgres: listing %s has unknown status %q", id, currentStr)
	}
	if !current.CanTransitionTo(status) {
		return fmt.Errorf("postgres: invalid status transition %s -> %s for %s", current, status, id)
	}

	_, err = tx.Exec(`
		UPDATE listings
		SET status = $2,
		    processed_at = COALESCE($3, processed_at),
		    last_updated_at = NOW()
		WHERE id = $1
	`, id, string(status), nullTime(processedAt))
	if err != nil {
		return fmt.Errorf("postgres: set status %s: %w", id, err)
	}

	return tx.Commit()
}

// ListByStatus returns listings in the given status, newest first.
func (s *PostgresStore) ListByStatus(status models.Status, limit int) ([]*models.StoredListing, error) {
	query := `SELECT` + listingColumns + ` FROM listings WHERE status = $1 ORDER BY first_seen_at DESC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryListings(query, args...)
}

// ListAll returns listings regardless of status, newest first.
func (s *PostgresStore) ListAll(limit int) ([]*models.StoredListing, error) {
	query := `SELECT` + listingColumns + ` FROM listings ORDER BY first_seen_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return s.queryListings(query, args...)
}

// ResetAllToNew bulk-resets every listing to NEW before a re-filtering pass.
func (s *PostgresStore) ResetAllToNew() (int64, error) {
	res, err := s.db.Exec(`UPDATE listings SET status = $1, last_updated_at = NOW()`,
		string(models.StatusNew))
	if err != nil {
		return 0, fmt.Errorf("postgres: reset to new: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: reset to new: %w", err)
	}
	return n, nil
}

// Stats returns total and per-status counts.
func (s *PostgresStore) Stats() (*Stats, error) {
	stats := &Stats{ByStatus: make(map[models.Status]int)}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM listings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var statusStr string
		var count int
		if err := rows.Scan(&statusStr, &count); err != nil {
			return nil, fmt.Errorf("postgres: stats scan: %w", err)
		}
		stats.ByStatus[models.Status(statusStr)] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

// KnownIDs returns the ids already stored for a source (all sources when
// source is empty).
func (s *PostgresStore) KnownIDs(source string) (map[string]struct{}, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if source == "" {
		rows, err = s.db.Query(`SELECT id FROM listings`)
	} else {
		rows, err = s.db.Query(`SELECT id FROM listings WHERE source = $1`, source)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: known ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: known ids scan: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) queryListings(query string, args ...any) ([]*models.StoredListing, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.StoredListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.StoredListing, error) {
	var (
		l           models.StoredListing
		description sql.NullString
		price       sql.NullInt64
		revenue     sql.NullInt64
		ebitda      sql.NullInt64
		location    sql.NullString
		industry    sql.NullString
		urlStr      sql.NullString
		postedDate  sql.NullTime
		margin      sql.NullFloat64
		multiple    sql.NullFloat64
		rawJSON     []byte
		statusStr   string
		processedAt sql.NullTime
	)

	err := row.Scan(
		&l.ID, &l.Source, &l.Title, &description, &price, &revenue, &ebitda,
		&location, &industry, &urlStr, &postedDate,
		&margin, &multiple, &rawJSON,
		&statusStr, &l.FirstSeenAt, &l.LastUpdatedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Description = description.String
	l.Price = int(price.Int64)
	l.Revenue = int(revenue.Int64)
	l.Ebitda = int(ebitda.Int64)
	l.Location = location.String
	l.Industry = industry.String
	l.URL = urlStr.String
	if postedDate.Valid {
		t := postedDate.Time
		l.PostedDate = &t
	}
	l.EbitdaMarginDB = margin.Float64
	l.AskingMultipleDB = multiple.Float64
	if len(rawJSON) > 0 {
		_ = json.Unmarshal(rawJSON, &l.RawData)
	}
	l.Status = models.Status(statusStr)
	if processedAt.Valid {
		t := processedAt.Time
		l.ProcessedAt = &t
	}

	return &l, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(i int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(i), Valid: i > 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
