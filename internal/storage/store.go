// Package storage mirrors indexed documents into a SQL database so later
// builds can skip parsing files whose content has not changed.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-content/internal/identity"
	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/internal/parser"
	"github.com/goliatone/go-content/pkg/interfaces"
)

const cacheNamespace = "content_documents"

// ErrDatabaseRequired is returned when a store is built without a database.
var ErrDatabaseRequired = errors.New("storage: database is required")

// Option customises a Store.
type Option func(*Store)

// WithCache wraps the repository with go-repository-cache. Both arguments
// are required for caching to be enabled.
func WithCache(service cache.CacheService, serializer cache.KeySerializer) Option {
	return func(s *Store) {
		s.cacheService = service
		s.keySerializer = serializer
	}
}

// WithLogger sets the store logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(s *Store) {
		s.logger = logging.Ensure(logger)
	}
}

// Store implements interfaces.DocumentStore on bun.
type Store struct {
	db            *bun.DB
	repo          repository.Repository[*DocumentRecord]
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	cachePrefix   string
	logger        interfaces.Logger
}

var _ interfaces.DocumentStore = (*Store)(nil)

// Open connects to a sqlite database. An empty dsn opens a private
// in-memory database.
func Open(dsn string) (*bun.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file::memory:?cache=shared"
	}
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	return bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

// New builds a Store over db.
func New(db *bun.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDatabaseRequired
	}
	s := &Store{db: db, logger: logging.NoOp()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.repo = NewDocumentRepository(db)
	if s.cacheService != nil && s.keySerializer != nil {
		s.repo = repositorycache.New(s.repo, s.cacheService, s.keySerializer)
		s.cachePrefix = cacheNamespace + cache.KeySeparator
	}
	return s, nil
}

// EnsureSchema creates the mirror table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*DocumentRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("storage: create content_documents: %w", err)
	}
	return nil
}

// Lookup returns the row stored for key or ErrStoredDocumentNotFound.
func (s *Store) Lookup(ctx context.Context, key string) (*interfaces.StoredDocument, error) {
	record, err := s.repo.GetByIdentifier(ctx, key)
	if err != nil {
		return nil, mapRepositoryError(err, key)
	}
	return recordToStored(record)
}

// Save creates or replaces the row for record.Key.
func (s *Store) Save(ctx context.Context, stored *interfaces.StoredDocument) error {
	if stored == nil || strings.TrimSpace(stored.Key) == "" {
		return errors.New("storage: record key is required")
	}
	record, err := storedToRecord(stored)
	if err != nil {
		return err
	}

	existing, err := s.repo.GetByIdentifier(ctx, record.Key)
	switch {
	case err == nil:
		record.ID = existing.ID
		if _, err := s.repo.Update(ctx, record); err != nil {
			return fmt.Errorf("storage: update %s: %w", record.Key, err)
		}
	case goerrors.IsCategory(err, repository.CategoryDatabaseNotFound):
		if _, err := s.repo.Create(ctx, record); err != nil {
			return fmt.Errorf("storage: create %s: %w", record.Key, err)
		}
	default:
		return mapRepositoryError(err, record.Key)
	}

	logging.WithDocument(s.logger, record.Key).Trace("storage.saved", "checksum", record.Checksum)
	return s.invalidate(ctx)
}

// Delete removes the row for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	existing, err := s.repo.GetByIdentifier(ctx, key)
	if err != nil {
		return mapRepositoryError(err, key)
	}
	if err := s.repo.Delete(ctx, &DocumentRecord{ID: existing.ID}); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	logging.WithDocument(s.logger, key).Trace("storage.deleted")
	return s.invalidate(ctx)
}

// List returns every stored row.
func (s *Store) List(ctx context.Context) ([]*interfaces.StoredDocument, error) {
	records, _, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	out := make([]*interfaces.StoredDocument, 0, len(records))
	for _, record := range records {
		stored, err := recordToStored(record)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}

func (s *Store) invalidate(ctx context.Context) error {
	if s.cacheService == nil || s.cachePrefix == "" {
		return nil
	}
	return s.cacheService.DeleteByPrefix(ctx, s.cachePrefix)
}

func mapRepositoryError(err error, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) || errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", interfaces.ErrStoredDocumentNotFound, key)
	}
	return fmt.Errorf("storage: %s: %w", key, err)
}

func storedToRecord(stored *interfaces.StoredDocument) (*DocumentRecord, error) {
	payload, err := json.Marshal(stored.Document)
	if err != nil {
		return nil, fmt.Errorf("storage: encode %s: %w", stored.Key, err)
	}
	updated := stored.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return &DocumentRecord{
		ID:        identity.DocumentUUID(stored.Key),
		Key:       stored.Key,
		Source:    stored.Source,
		File:      stored.File,
		Locale:    stored.Locale,
		Checksum:  stored.Checksum,
		Payload:   string(payload),
		UpdatedAt: updated,
	}, nil
}

func recordToStored(record *DocumentRecord) (*interfaces.StoredDocument, error) {
	if record == nil {
		return nil, interfaces.ErrStoredDocumentNotFound
	}
	var fields map[string]any
	decoder := json.NewDecoder(bytes.NewReader([]byte(record.Payload)))
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", record.Key, err)
	}
	return &interfaces.StoredDocument{
		Key:       record.Key,
		Source:    record.Source,
		File:      record.File,
		Locale:    record.Locale,
		Checksum:  record.Checksum,
		Document:  interfaces.Document(parser.NormalizeFields(fields)),
		UpdatedAt: record.UpdatedAt,
	}, nil
}
