package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	t "dreamcard/internal/types"
)

type fileDoc struct {
	Builds   []t.Build   `json:"builds"`
	Sessions []t.Session `json:"sessions"`
}

func (s *Store) ensureLoadedFile() {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var doc fileDoc
		if err := json.Unmarshal(b, &doc); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range doc.Builds {
			if id := strings.TrimSpace(row.ID); id != "" {
				s.builds[id] = row
			}
		}
		for _, row := range doc.Sessions {
			if id := strings.TrimSpace(row.ID); id != "" {
				s.sessions[id] = row
			}
		}
	})
}

func (s *Store) saveFile() {
	s.ensureLoadedFile()
	s.mu.RLock()
	doc := fileDoc{
		Builds:   make([]t.Build, 0, len(s.builds)),
		Sessions: make([]t.Session, 0, len(s.sessions)),
	}
	for _, b := range s.builds {
		doc.Builds = append(doc.Builds, b)
	}
	for _, sess := range s.sessions {
		doc.Sessions = append(doc.Sessions, sess)
	}
	s.mu.RUnlock()

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(s.path), 0o755)
	_ = os.WriteFile(s.path, b, 0o644)
}

func (s *Store) putBuildFile(b t.Build) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	s.builds[b.ID] = b
	s.mu.Unlock()
	s.saveFile()
	return nil
}

func (s *Store) getBuildFile(id t.BuildID) (t.Build, error) {
	s.ensureLoadedFile()
	s.mu.RLock()
	b, ok := s.builds[strings.TrimSpace(id)]
	s.mu.RUnlock()
	if !ok {
		return t.Build{}, ErrNotFound
	}
	return b, nil
}

func (s *Store) updateBuildFile(id t.BuildID, update func(*t.Build)) (t.Build, error) {
	s.ensureLoadedFile()
	id = strings.TrimSpace(id)
	s.mu.Lock()
	b, ok := s.builds[id]
	if !ok {
		s.mu.Unlock()
		return t.Build{}, ErrNotFound
	}
	update(&b)
	b.ID = id
	b.UpdatedAt = time.Now().UTC()
	s.builds[id] = b
	s.mu.Unlock()
	s.saveFile()
	return b, nil
}

func (s *Store) updateArtifactFile(id t.BuildID, artifact t.BuildArtifact, expectVersion int) (t.Build, error) {
	s.ensureLoadedFile()
	id = strings.TrimSpace(id)
	s.mu.Lock()
	b, ok := s.builds[id]
	if !ok {
		s.mu.Unlock()
		return t.Build{}, ErrNotFound
	}
	if artifactVersion(&b) != expectVersion {
		s.mu.Unlock()
		return t.Build{}, ErrVersionConflict
	}
	artifact.Version = expectVersion + 1
	b.Artifact = &artifact
	b.Blueprint = &artifact.Blueprint
	b.UpdatedAt = time.Now().UTC()
	s.builds[id] = b
	s.mu.Unlock()
	s.saveFile()
	return b, nil
}

func (s *Store) putSessionFile(sess t.Session) error {
	s.ensureLoadedFile()
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.saveFile()
	return nil
}

func (s *Store) getSessionFile(id t.SessionID) (t.Session, error) {
	s.ensureLoadedFile()
	s.mu.RLock()
	sess, ok := s.sessions[strings.TrimSpace(id)]
	s.mu.RUnlock()
	if !ok {
		return t.Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *Store) updateSessionFile(id t.SessionID, update func(*t.Session)) (t.Session, error) {
	s.ensureLoadedFile()
	id = strings.TrimSpace(id)
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return t.Session{}, ErrNotFound
	}
	update(&sess)
	sess.ID = id
	s.sessions[id] = sess
	s.mu.Unlock()
	s.saveFile()
	return sess, nil
}
