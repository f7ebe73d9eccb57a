package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	t "dreamcard/internal/types"
)

// Records are stored as whole JSONB documents: the core only ever reads and
// writes whole-record patches, so a relational decomposition buys nothing.
// The builds.version column mirrors the artifact version for the optimistic
// update.
func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS builds (
  id TEXT PRIMARY KEY,
  doc JSONB NOT NULL,
  version INT NOT NULL DEFAULT 0,
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  doc JSONB NOT NULL
);
`)
	})
	return s.schemaErr
}

func (s *Store) putBuildDB(ctx context.Context, b t.Build) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	doc, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO builds (id, doc, version, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (id)
DO UPDATE SET doc = EXCLUDED.doc, version = EXCLUDED.version, updated_at = NOW()`,
		b.ID, doc, artifactVersion(&b))
	return err
}

func (s *Store) getBuildDB(ctx context.Context, id t.BuildID) (t.Build, error) {
	if err := s.ensureSchema(); err != nil {
		return t.Build{}, err
	}
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM builds WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return t.Build{}, ErrNotFound
	}
	if err != nil {
		return t.Build{}, err
	}
	var b t.Build
	if err := json.Unmarshal(doc, &b); err != nil {
		return t.Build{}, fmt.Errorf("store: corrupt build doc %s: %w", id, err)
	}
	return b, nil
}

func (s *Store) updateBuildDB(ctx context.Context, id t.BuildID, update func(*t.Build)) (t.Build, error) {
	if err := s.ensureSchema(); err != nil {
		return t.Build{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return t.Build{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var doc []byte
	err = tx.QueryRowContext(ctx, `SELECT doc FROM builds WHERE id = $1 FOR UPDATE`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return t.Build{}, ErrNotFound
	}
	if err != nil {
		return t.Build{}, err
	}
	var b t.Build
	if err := json.Unmarshal(doc, &b); err != nil {
		return t.Build{}, fmt.Errorf("store: corrupt build doc %s: %w", id, err)
	}

	update(&b)
	b.ID = id
	b.UpdatedAt = time.Now().UTC()
	out, err := json.Marshal(b)
	if err != nil {
		return t.Build{}, err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE builds SET doc = $2, version = $3, updated_at = NOW() WHERE id = $1`,
		id, out, artifactVersion(&b)); err != nil {
		return t.Build{}, err
	}
	if err := tx.Commit(); err != nil {
		return t.Build{}, err
	}
	return b, nil
}

func (s *Store) updateArtifactDB(ctx context.Context, id t.BuildID, artifact t.BuildArtifact, expectVersion int) (t.Build, error) {
	if err := s.ensureSchema(); err != nil {
		return t.Build{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return t.Build{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var doc []byte
	var version int
	err = tx.QueryRowContext(ctx, `SELECT doc, version FROM builds WHERE id = $1 FOR UPDATE`, id).
		Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return t.Build{}, ErrNotFound
	}
	if err != nil {
		return t.Build{}, err
	}
	if version != expectVersion {
		return t.Build{}, ErrVersionConflict
	}

	var b t.Build
	if err := json.Unmarshal(doc, &b); err != nil {
		return t.Build{}, fmt.Errorf("store: corrupt build doc %s: %w", id, err)
	}
	artifact.Version = expectVersion + 1
	b.Artifact = &artifact
	b.Blueprint = &artifact.Blueprint
	b.UpdatedAt = time.Now().UTC()

	out, err := json.Marshal(b)
	if err != nil {
		return t.Build{}, err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE builds SET doc = $2, version = $3, updated_at = NOW() WHERE id = $1`,
		id, out, artifact.Version); err != nil {
		return t.Build{}, err
	}
	if err := tx.Commit(); err != nil {
		return t.Build{}, err
	}
	return b, nil
}

func (s *Store) putSessionDB(ctx context.Context, sess t.Session) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	doc, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO sessions (id, doc) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`, sess.ID, doc)
	return err
}

func (s *Store) getSessionDB(ctx context.Context, id t.SessionID) (t.Session, error) {
	if err := s.ensureSchema(); err != nil {
		return t.Session{}, err
	}
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM sessions WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return t.Session{}, ErrNotFound
	}
	if err != nil {
		return t.Session{}, err
	}
	var sess t.Session
	if err := json.Unmarshal(doc, &sess); err != nil {
		return t.Session{}, fmt.Errorf("store: corrupt session doc %s: %w", id, err)
	}
	return sess, nil
}

func (s *Store) updateSessionDB(ctx context.Context, id t.SessionID, update func(*t.Session)) (t.Session, error) {
	if err := s.ensureSchema(); err != nil {
		return t.Session{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return t.Session{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var doc []byte
	err = tx.QueryRowContext(ctx, `SELECT doc FROM sessions WHERE id = $1 FOR UPDATE`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return t.Session{}, ErrNotFound
	}
	if err != nil {
		return t.Session{}, err
	}
	var sess t.Session
	if err := json.Unmarshal(doc, &sess); err != nil {
		return t.Session{}, fmt.Errorf("store: corrupt session doc %s: %w", id, err)
	}
	update(&sess)
	sess.ID = id
	out, err := json.Marshal(sess)
	if err != nil {
		return t.Session{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET doc = $2 WHERE id = $1`, id, out); err != nil {
		return t.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return t.Session{}, err
	}
	return sess, nil
}
