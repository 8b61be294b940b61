package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/threatmap/internal/apperr"
	"github.com/starford/threatmap/internal/models"
)

// Importer receives the records declared by catalog files.
type Importer interface {
	SaveThreat(ctx context.Context, t models.Threat) (models.Threat, error)
	SaveMitigation(ctx context.Context, m models.Mitigation) (models.Mitigation, error)
	SaveSubdomain(ctx context.Context, sd models.Subdomain) (models.Subdomain, error)
	DeleteThreat(ctx context.Context, id string) error
	DeleteMitigation(ctx context.Context, id string) error
}

// Result counts what a sync pass changed.
type Result struct {
	Imported int `json:"imported"`
	Removed  int `json:"removed"`
	Failed   int `json:"failed"`
}

type fileState struct {
	checksum    string
	threats     []string
	mitigations []string
}

// Syncer imports catalog files and remembers which threats and mitigations
// each file declared, so that records dropped from a file, or declared by a
// file that is removed, are deleted from the store.
type Syncer struct {
	dir    *Dir
	imp    Importer
	logger *slog.Logger

	mu    sync.Mutex
	files map[string]fileState
}

// NewSyncer creates a syncer for dir.
func NewSyncer(dir *Dir, imp Importer, logger *slog.Logger) *Syncer {
	return &Syncer{dir: dir, imp: imp, logger: logger, files: map[string]fileState{}}
}

// Sync brings the store up to date with the catalog:
//   - new or changed files are parsed and imported
//   - files seen before that are gone have their threats deleted
//
// A file that fails to import is logged and skipped.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	metas, err := s.dir.List()
	if err != nil {
		return Result{}, err
	}

	var res Result
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		changed, err := s.ImportFile(ctx, m.Path)
		if err != nil {
			s.logger.Warn("sync: import failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		if changed {
			s.logger.Debug("sync: imported", slog.String("path", m.Path))
			res.Imported++
		}
	}

	for _, p := range s.trackedPaths() {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := s.RemoveFile(ctx, p); err != nil {
			s.logger.Warn("sync: remove failed", slog.String("path", p), slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		s.logger.Debug("sync: removed stale", slog.String("path", p))
		res.Removed++
	}
	return res, nil
}

// ImportFile imports one catalog file. It reports false when the file is
// unchanged since the last import.
func (s *Syncer) ImportFile(ctx context.Context, path string) (bool, error) {
	data, err := s.dir.Read(path)
	if err != nil {
		return false, err
	}
	sum := fileChecksum(data)

	s.mu.Lock()
	prev, seen := s.files[path]
	s.mu.Unlock()
	if seen && prev.checksum == sum {
		return false, nil
	}

	f, err := Parse(data)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}

	declared := make([]string, 0, len(f.Threats))
	var declaredMits []string
	for _, te := range f.Threats {
		if _, err := s.imp.SaveThreat(ctx, te.Threat()); err != nil {
			return false, fmt.Errorf("%s: threat %s: %w", path, te.ID, err)
		}
		declared = append(declared, te.ID)
		for _, me := range te.Mitigations {
			if _, err := s.imp.SaveMitigation(ctx, me.Mitigation(te.ID)); err != nil {
				return false, fmt.Errorf("%s: mitigation %s: %w", path, me.ID, err)
			}
			declaredMits = append(declaredMits, me.ID)
		}
	}
	for _, se := range f.Subdomains {
		if _, err := s.imp.SaveSubdomain(ctx, se.Subdomain()); err != nil {
			return false, fmt.Errorf("%s: subdomain %s: %w", path, se.Name, err)
		}
	}

	if seen {
		for _, id := range dropped(prev.mitigations, declaredMits) {
			if err := s.deleteMitigation(ctx, path, id); err != nil {
				return false, err
			}
		}
		for _, id := range dropped(prev.threats, declared) {
			if err := s.deleteThreat(ctx, path, id); err != nil {
				return false, err
			}
		}
	}

	s.mu.Lock()
	s.files[path] = fileState{checksum: sum, threats: declared, mitigations: declaredMits}
	s.mu.Unlock()
	return true, nil
}

// RemoveFile deletes the threats and mitigations declared by a file that no
// longer exists. Records also declared by another tracked file are kept.
func (s *Syncer) RemoveFile(ctx context.Context, path string) error {
	s.mu.Lock()
	prev, ok := s.files[path]
	delete(s.files, path)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	for _, id := range prev.mitigations {
		if err := s.deleteMitigation(ctx, path, id); err != nil {
			return err
		}
	}
	for _, id := range prev.threats {
		if err := s.deleteThreat(ctx, path, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) deleteThreat(ctx context.Context, path, id string) error {
	if s.declaredElsewhere(path, func(st fileState) []string { return st.threats }, id) {
		return nil
	}
	err := s.imp.DeleteThreat(ctx, id)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%s: delete threat %s: %w", path, id, err)
	}
	return nil
}

// deleteMitigation ignores ErrNotFound: the mitigation may already be gone
// with its threat.
func (s *Syncer) deleteMitigation(ctx context.Context, path, id string) error {
	if s.declaredElsewhere(path, func(st fileState) []string { return st.mitigations }, id) {
		return nil
	}
	err := s.imp.DeleteMitigation(ctx, id)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%s: delete mitigation %s: %w", path, id, err)
	}
	return nil
}

func (s *Syncer) declaredElsewhere(path string, ids func(fileState) []string, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, st := range s.files {
		if p == path {
			continue
		}
		for _, other := range ids(st) {
			if other == id {
				return true
			}
		}
	}
	return false
}

// dropped returns the ids in prev that are missing from cur.
func dropped(prev, cur []string) []string {
	keep := make(map[string]bool, len(cur))
	for _, id := range cur {
		keep[id] = true
	}
	var out []string
	for _, id := range prev {
		if !keep[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *Syncer) trackedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	return out
}
