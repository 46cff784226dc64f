package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

//go:embed migrations
var migrationsFS embed.FS

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Index implements simplemedia.Index using PostgreSQL
type Index struct {
	db DBTX
}

// New creates a new PostgreSQL index
func New(db DBTX) *Index {
	return &Index{db: db}
}

// Connect creates and validates a pgx connection pool.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate runs all pending up migrations embedded in the binary.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	slog.Info("index migrations applied")
	return nil
}

const entryColumns = `id, namespace, COALESCE(storage_key, ''), display_name, source_url,
	content_type, created_at, poster_key, poster_url, external_video_id`

func scanEntry(row pgx.Row) (*simplemedia.MediaEntry, error) {
	var e simplemedia.MediaEntry
	var ns string
	err := row.Scan(&e.ID, &ns, &e.StorageKey, &e.DisplayName, &e.SourceURL,
		&e.ContentType, &e.CreatedAt, &e.PosterKey, &e.PosterURL, &e.ExternalVideoID)
	if err != nil {
		return nil, err
	}
	e.Namespace = simplemedia.Namespace(ns)
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

// handlePostgresError maps driver errors onto index sentinels
func handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return simplemedia.ErrEntryNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "storage_key") {
				return fmt.Errorf("%w: %s", simplemedia.ErrDuplicateKey, pgErr.Detail)
			}
			return fmt.Errorf("entry already exists")
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (i *Index) List(ctx context.Context, ns simplemedia.Namespace) ([]*simplemedia.MediaEntry, error) {
	if !ns.IsValid() {
		return nil, simplemedia.ErrInvalidType
	}

	rows, err := i.db.Query(ctx, `SELECT `+entryColumns+` FROM media_entry WHERE namespace = $1 ORDER BY seq DESC`, string(ns))
	if err != nil {
		return nil, handlePostgresError("list", err)
	}
	defer rows.Close()

	out := []*simplemedia.MediaEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, handlePostgresError("list", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list", err)
	}
	return out, nil
}

func (i *Index) Insert(ctx context.Context, ns simplemedia.Namespace, entry *simplemedia.MediaEntry) error {
	if !ns.IsValid() {
		return simplemedia.ErrInvalidType
	}

	_, err := i.db.Exec(ctx, `
		INSERT INTO media_entry (
			namespace, id, storage_key, display_name, source_url,
			content_type, created_at, poster_key, poster_url, external_video_id
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)`,
		string(ns), entry.ID, entry.StorageKey, entry.DisplayName, entry.SourceURL,
		entry.ContentType, entry.CreatedAt, entry.PosterKey, entry.PosterURL, entry.ExternalVideoID)
	if err != nil {
		return handlePostgresError("insert", err)
	}
	return nil
}

func (i *Index) Remove(ctx context.Context, ns simplemedia.Namespace, id string) (*simplemedia.MediaEntry, error) {
	if !ns.IsValid() {
		return nil, simplemedia.ErrInvalidType
	}

	row := i.db.QueryRow(ctx, `DELETE FROM media_entry WHERE namespace = $1 AND id = $2 RETURNING `+entryColumns, string(ns), id)
	e, err := scanEntry(row)
	if err != nil {
		return nil, handlePostgresError("remove", err)
	}
	return e, nil
}

func (i *Index) FindByID(ctx context.Context, ns simplemedia.Namespace, id string) (*simplemedia.MediaEntry, error) {
	if !ns.IsValid() {
		return nil, simplemedia.ErrInvalidType
	}

	row := i.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM media_entry WHERE namespace = $1 AND id = $2`, string(ns), id)
	e, err := scanEntry(row)
	if err != nil {
		return nil, handlePostgresError("find by id", err)
	}
	return e, nil
}

func (i *Index) FindByKey(ctx context.Context, ns simplemedia.Namespace, key string) (*simplemedia.MediaEntry, error) {
	if !ns.IsValid() {
		return nil, simplemedia.ErrInvalidType
	}
	if key == "" {
		return nil, simplemedia.ErrEntryNotFound
	}

	row := i.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM media_entry WHERE namespace = $1 AND storage_key = $2`, string(ns), key)
	e, err := scanEntry(row)
	if err != nil {
		return nil, handlePostgresError("find by key", err)
	}
	return e, nil
}

func (i *Index) UpdatePoster(ctx context.Context, ns simplemedia.Namespace, id, posterKey, posterURL string) (*simplemedia.MediaEntry, error) {
	if !ns.IsValid() {
		return nil, simplemedia.ErrInvalidType
	}

	row := i.db.QueryRow(ctx, `
		UPDATE media_entry SET poster_key = $3, poster_url = $4
		WHERE namespace = $1 AND id = $2
		RETURNING `+entryColumns, string(ns), id, posterKey, posterURL)
	e, err := scanEntry(row)
	if err != nil {
		return nil, handlePostgresError("update poster", err)
	}
	return e, nil
}
