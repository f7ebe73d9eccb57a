// Package store persists sessions and builds. Two backends share one front:
// a JSON file (default, good enough for dev and single-node deploys) and
// Postgres when a DSN is configured. Reads of hot builds go through a small
// LRU so the editor's iterate loop does not hammer the database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	t "dreamcard/internal/types"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict means the artifact moved underneath an optimistic
	// update; the caller should reload and retry or surface the conflict.
	ErrVersionConflict = errors.New("store: artifact version conflict")
)

const buildCacheSize = 512

type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	builds   map[string]t.Build
	sessions map[string]t.Session

	schemaOnce sync.Once
	schemaErr  error

	buildCache *lru.Cache[string, t.Build]
}

// New returns a file-backed store rooted at path.
func New(path string) *Store {
	cache, _ := lru.New[string, t.Build](buildCacheSize)
	return &Store{
		path:       path,
		builds:     make(map[string]t.Build),
		sessions:   make(map[string]t.Session),
		buildCache: cache,
	}
}

// NewPostgres returns a Postgres-backed store.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, t.Build](buildCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, buildCache: cache}, nil
}

// NewFromEnv picks Postgres when DREAMCARD_PG_DSN is set and reachable,
// otherwise the file backend at path.
func NewFromEnv(path string) *Store {
	dsn := strings.TrimSpace(os.Getenv("DREAMCARD_PG_DSN"))
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(path)
	}
	return s
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if s.db != nil {
		return s.db.Close()
	}
	s.saveFile()
	return nil
}

// Save flushes the file backend. No-op on Postgres.
func (s *Store) Save() {
	if s == nil || s.db != nil {
		return
	}
	s.saveFile()
}

// -------- builds --------

func (s *Store) PutBuild(ctx context.Context, b t.Build) error {
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("store: empty build id")
	}
	b.UpdatedAt = time.Now().UTC()
	s.buildCache.Remove(b.ID)
	if s.db != nil {
		return s.putBuildDB(ctx, b)
	}
	return s.putBuildFile(b)
}

func (s *Store) GetBuild(ctx context.Context, id t.BuildID) (t.Build, error) {
	if b, ok := s.buildCache.Get(id); ok {
		return b, nil
	}
	var b t.Build
	var err error
	if s.db != nil {
		b, err = s.getBuildDB(ctx, id)
	} else {
		b, err = s.getBuildFile(id)
	}
	if err == nil {
		s.buildCache.Add(id, b)
	}
	return b, err
}

// UpdateBuild applies update to the stored record as one read-modify-write.
func (s *Store) UpdateBuild(ctx context.Context, id t.BuildID, update func(*t.Build)) (t.Build, error) {
	s.buildCache.Remove(id)
	if s.db != nil {
		return s.updateBuildDB(ctx, id, update)
	}
	return s.updateBuildFile(id, update)
}

// UpdateArtifact installs a new artifact with optimistic concurrency:
// expectVersion must match the stored artifact's version (0 when no
// artifact exists yet) or ErrVersionConflict is returned. The installed
// artifact carries expectVersion+1.
func (s *Store) UpdateArtifact(ctx context.Context, id t.BuildID, artifact t.BuildArtifact, expectVersion int) (t.Build, error) {
	s.buildCache.Remove(id)
	if s.db != nil {
		return s.updateArtifactDB(ctx, id, artifact, expectVersion)
	}
	return s.updateArtifactFile(id, artifact, expectVersion)
}

// -------- sessions --------

func (s *Store) PutSession(ctx context.Context, sess t.Session) error {
	if strings.TrimSpace(sess.ID) == "" {
		return errors.New("store: empty session id")
	}
	if s.db != nil {
		return s.putSessionDB(ctx, sess)
	}
	return s.putSessionFile(sess)
}

func (s *Store) GetSession(ctx context.Context, id t.SessionID) (t.Session, error) {
	if s.db != nil {
		return s.getSessionDB(ctx, id)
	}
	return s.getSessionFile(id)
}

func (s *Store) UpdateSession(ctx context.Context, id t.SessionID, update func(*t.Session)) (t.Session, error) {
	if s.db != nil {
		return s.updateSessionDB(ctx, id, update)
	}
	return s.updateSessionFile(id, update)
}

func artifactVersion(b *t.Build) int {
	if b.Artifact == nil {
		return 0
	}
	return b.Artifact.Version
}
