package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"rda_bot/internal/model"
	"rda_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// DefaultSeenLimit is the number of spot hashes kept when no limit is given.
const DefaultSeenLimit = 5000

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db        *sql.DB
	seenLimit int
}

// Option configures a SQLite store.
type Option func(*SQLite)

// WithSeenLimit bounds the number of retained spot hashes.
func WithSeenLimit(n int) Option {
	return func(s *SQLite) {
		if n > 0 {
			s.seenLimit = n
		}
	}
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writers and keeps :memory: databases whole.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &SQLite{db: db, seenLimit: DefaultSeenLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertSubscriber creates the subscriber or refreshes its names.
func (s *SQLite) UpsertSubscriber(ctx context.Context, sub model.Subscriber) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (chat_id, first_name, username, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET first_name = excluded.first_name, username = excluded.username`,
		sub.ChatID, sub.FirstName, sub.Username, now(),
	)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}

// SetSubscription adds or removes a subscription. Both directions are
// idempotent.
func (s *SQLite) SetSubscription(ctx context.Context, chatID int64, kind model.SubscriptionKind, on bool) error {
	var err error
	if on {
		_, err = s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO subscriptions (chat_id, kind) VALUES (?, ?)`, chatID, string(kind))
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM subscriptions WHERE chat_id = ? AND kind = ?`, chatID, string(kind))
	}
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	return nil
}

// ListSubscribers returns the chats subscribed to kind, ordered by chat ID.
func (s *SQLite) ListSubscribers(ctx context.Context, kind model.SubscriptionKind) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id FROM subscriptions WHERE kind = ? ORDER BY chat_id`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountSubscribers returns the number of subscribers per kind.
func (s *SQLite) CountSubscribers(ctx context.Context) (map[model.SubscriptionKind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM subscriptions GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count subscribers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.SubscriptionKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[model.SubscriptionKind(kind)] = n
	}
	return counts, rows.Err()
}

// AddRDAFilters adds codes to the allow-list and returns the ones that were
// not present yet, in argument order.
func (s *SQLite) AddRDAFilters(ctx context.Context, chatID int64, codes []string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var added []string
	for _, code := range codes {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO rda_filters (chat_id, rda) VALUES (?, ?)`, chatID, code)
		if err != nil {
			return nil, fmt.Errorf("insert rda filter: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n > 0 {
			added = append(added, code)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rda filters: %w", err)
	}
	return added, nil
}

// GetRDAFilters returns the allow-list in insertion order.
func (s *SQLite) GetRDAFilters(ctx context.Context, chatID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rda FROM rda_filters WHERE chat_id = ? ORDER BY id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query rda filters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan rda filter: %w", err)
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// ClearRDAFilters empties the allow-list.
func (s *SQLite) ClearRDAFilters(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rda_filters WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear rda filters: %w", err)
	}
	return nil
}

// SetMode stores the mode filter. An empty mode resets it to ANY.
func (s *SQLite) SetMode(ctx context.Context, chatID int64, mode string) error {
	if mode == "" {
		mode = model.ModeAny
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO filter_settings (chat_id, mode) VALUES (?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET mode = excluded.mode`,
		chatID, mode,
	)
	if err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	return nil
}

// SetBand stores the band filter. Nil bounds are unbounded.
func (s *SQLite) SetBand(ctx context.Context, chatID int64, low, high *float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO filter_settings (chat_id, band_low, band_high) VALUES (?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET band_low = excluded.band_low, band_high = excluded.band_high`,
		chatID, nullFloat(low), nullFloat(high),
	)
	if err != nil {
		return fmt.Errorf("set band: %w", err)
	}
	return nil
}

// GetFilterConfig returns the mode and band filter. Subscribers without
// settings get ANY and an unbounded band.
func (s *SQLite) GetFilterConfig(ctx context.Context, chatID int64) (string, *float64, *float64, error) {
	var (
		mode      string
		low, high sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT mode, band_low, band_high FROM filter_settings WHERE chat_id = ?`, chatID,
	).Scan(&mode, &low, &high)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ModeAny, nil, nil, nil
	}
	if err != nil {
		return "", nil, nil, fmt.Errorf("query filter settings: %w", err)
	}
	return mode, floatPtr(low), floatPtr(high), nil
}

// SetTemplate stores a custom spot template. An empty template restores the
// default.
func (s *SQLite) SetTemplate(ctx context.Context, chatID int64, tmpl string) error {
	var v any
	if tmpl != "" {
		v = tmpl
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (chat_id, template, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET template = excluded.template`,
		chatID, v, now(),
	)
	if err != nil {
		return fmt.Errorf("set template: %w", err)
	}
	return nil
}

// GetTemplate returns the custom template, or "" when none is set.
func (s *SQLite) GetTemplate(ctx context.Context, chatID int64) (string, error) {
	var tmpl sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT template FROM subscribers WHERE chat_id = ?`, chatID,
	).Scan(&tmpl)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query template: %w", err)
	}
	return tmpl.String, nil
}

// IsNew records a spot hash and reports whether it was unseen. The oldest
// hashes beyond the seen limit are deleted in the same transaction.
func (s *SQLite) IsNew(ctx context.Context, key string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_spots (hash, seen_at) VALUES (?, ?)`, key, now())
	if err != nil {
		return false, fmt.Errorf("insert seen spot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM seen_spots
		 WHERE seq <= (SELECT seq FROM seen_spots ORDER BY seq DESC LIMIT 1 OFFSET ?)`,
		s.seenLimit,
	)
	if err != nil {
		return false, fmt.Errorf("trim seen spots: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seen spot: %w", err)
	}
	return true, nil
}

// seenKeys returns retained hashes from oldest to newest.
func (s *SQLite) seenKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hash FROM seen_spots ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query seen spots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan seen spot: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
