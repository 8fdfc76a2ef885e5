package bunpg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/campora/assistant/assistant/contract"
)

type Config struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
}

// document is one row of the generic collection table the CRUD pages write
// into: every ERP collection lives in `documents` keyed by (collection,
// doc_key) with the record body in a JSONB column.
type document struct {
	bun.BaseModel `bun:"table:documents"`

	Collection string         `bun:"collection,pk"`
	Key        string         `bun:"doc_key,pk"`
	Data       map[string]any `bun:"data,type:jsonb"`
}

// Store reads ERP collections from Postgres through bun. Read-only: this
// subsystem never writes.
type Store struct {
	db *bun.DB
}

var _ contractx.DocumentStore = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	)
	sqldb := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return &Store{db: bun.NewDB(sqldb, pgdialect.New())}, nil
}

func MustNew(cfg Config) *Store {
	store, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return store
}

func (s *Store) Get(ctx context.Context, collection, key string) (map[string]any, error) {
	var doc document
	err := s.db.NewSelect().
		Model(&doc).
		Where("collection = ?", collection).
		Where("doc_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", contractx.ErrDocNotFound, collection, key)
		}
		return nil, fmt.Errorf("select %s/%s: %w", collection, key, err)
	}
	return doc.Data, nil
}

func (s *Store) FindByField(ctx context.Context, collection, field, value string, limit int) ([]map[string]any, error) {
	var docs []document
	q := s.db.NewSelect().
		Model(&docs).
		Where("collection = ?", collection)
	if field != "" {
		q = q.Where("data->>? = ?", field, value)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("doc_key ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select %s by %s: %w", collection, field, err)
	}

	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
