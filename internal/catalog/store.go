package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"singalong/internal/logging"
	"singalong/internal/services"
)

// DeleteHook runs after an entry was removed.
type DeleteHook func(ctx context.Context, id string)

// Option customizes the store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db       *sql.DB
	path     string
	songsDir string
	logger   *slog.Logger
	now      func() time.Time

	cacheMu sync.Mutex
	cache   []Entry
	cached  bool

	hookMu sync.Mutex
	hooks  []DeleteHook
}

// Open initializes or connects to the catalog database at path.
func Open(path, songsDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}
	if err := os.MkdirAll(songsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create songs directory: %w", err)
	}

	pragmas := url.Values{}
	pragmas.Add("_pragma", "journal_mode(WAL)")
	pragmas.Add("_pragma", "foreign_keys(1)")
	pragmas.Add("_pragma", "busy_timeout(5000)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+pragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{
		db:       db,
		path:     path,
		songsDir: songsDir,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	store.logger = logging.NewComponentLogger(store.logger, "catalog")

	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// NewID allocates an identifier for a new entry.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// SongDir returns the directory holding an entry's files.
func (s *Store) SongDir(id string) string {
	return filepath.Join(s.songsDir, id)
}

// AudioPath returns the entry's stored original audio.
func (s *Store) AudioPath(entry Entry) string {
	return filepath.Join(s.SongDir(entry.ID), entry.StoredFilename)
}

// OnDelete registers a hook fired after each successful Delete.
func (s *Store) OnDelete(hook DeleteHook) {
	if hook == nil {
		return
	}
	s.hookMu.Lock()
	s.hooks = append(s.hooks, hook)
	s.hookMu.Unlock()
}

// Invalidate drops the cached entry list.
func (s *Store) Invalidate() {
	s.cacheMu.Lock()
	s.cache = nil
	s.cached = false
	s.cacheMu.Unlock()
}

// Get returns the entry with id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// List returns all entries, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	s.cacheMu.Lock()
	if s.cached {
		out := append([]Entry(nil), s.cache...)
		s.cacheMu.Unlock()
		return out, nil
	}
	s.cacheMu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	s.cacheMu.Lock()
	s.cache = entries
	s.cached = true
	s.cacheMu.Unlock()
	return append([]Entry(nil), entries...), nil
}

// FindByRemoteID returns the entry downloaded from remoteID, or nil.
func (s *Store) FindByRemoteID(ctx context.Context, remoteID string) (*Entry, error) {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE source_kind = ? AND source_remote_id = ? ORDER BY created_at DESC LIMIT 1`,
		SourceYouTube, remoteID,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by remote id: %w", err)
	}
	return entry, nil
}

// Create inserts entry, filling the id, timestamps, and default statuses.
func (s *Store) Create(ctx context.Context, entry Entry) (*Entry, error) {
	if strings.TrimSpace(entry.Title) == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "create", "title is required", nil)
	}
	if err := entry.normalize(); err != nil {
		return nil, err
	}
	if entry.ID == "" {
		entry.ID = s.NewID()
	}
	now := s.now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entryArgs(entry)...,
	); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	s.Invalidate()
	s.logger.Info("catalog entry created",
		logging.String(logging.FieldEventType, "catalog_entry_created"),
		logging.String(logging.FieldCatalogID, entry.ID),
		logging.String("title", entry.Title),
		logging.String("source", entry.Source.Kind),
	)
	return &entry, nil
}

// Mutate applies fn to the current entry inside a single transaction. The id
// and created_at are preserved and updated_at is stamped.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*Entry) error) (*Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mutate tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanEntry(tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load entry: %w", err)
	}

	next := *current
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.now().UTC()
	if err := next.normalize(); err != nil {
		return nil, err
	}

	args := entryArgs(next)
	if _, err := tx.ExecContext(ctx,
		`UPDATE entries SET `+updateAssignments+` WHERE id = ?`,
		append(args[1:], next.ID)...,
	); err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mutate: %w", err)
	}
	s.Invalidate()
	return &next, nil
}

// Delete removes the entry row and its song directory, then runs delete hooks.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Invalidate()

	dir := s.SongDir(id)
	if err := os.RemoveAll(dir); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove song directory", "catalog_dir_remove_failed",
			logging.String(logging.FieldCatalogID, id),
			logging.String("dir", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
			logging.String(logging.FieldImpact, "orphaned audio files remain on disk"),
		)
	}
	s.logger.Info("catalog entry deleted",
		logging.String(logging.FieldEventType, "catalog_entry_deleted"),
		logging.String(logging.FieldCatalogID, id),
	)

	s.hookMu.Lock()
	hooks := append([]DeleteHook(nil), s.hooks...)
	s.hookMu.Unlock()
	for _, hook := range hooks {
		hook(ctx, id)
	}
	return nil
}
