package textfile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Source reads every *.prom file in a directory and exposes the combined
// metric families as a push.MetricsSource. The parsed snapshot is cached;
// Reload (or a running Watch) refreshes it. A failed reload keeps the
// previous good snapshot so a half-written file never wipes a push.
type Source struct {
	dir string

	mu       sync.RWMutex
	families []*dto.MetricFamily
}

// New creates a Source for dir and performs the initial load.
func New(dir string) (*Source, error) {
	s := &Source{dir: dir}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Gather returns the most recently loaded families. It never touches the
// filesystem itself; call Reload or run Watch for that.
func (s *Source) Gather() ([]*dto.MetricFamily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*dto.MetricFamily, len(s.families))
	copy(out, s.families)
	return out, nil
}

// Reload re-reads every *.prom file in the directory. Families with the same
// name in different files are merged; a type conflict fails the whole reload.
// The cached snapshot is only swapped on success.
func (s *Source) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("textfile: read dir: %w", err)
	}

	byName := make(map[string]*dto.MetricFamily)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".prom" {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		mfs, err := parseFile(path)
		if err != nil {
			return fmt.Errorf("textfile: %s: %w", entry.Name(), err)
		}
		for name, mf := range mfs {
			existing, ok := byName[name]
			if !ok {
				byName[name] = mf
				continue
			}
			if existing.GetType() != mf.GetType() {
				return fmt.Errorf("textfile: %s: family %q conflicts with an earlier file (%s vs %s)",
					entry.Name(), name, mf.GetType(), existing.GetType())
			}
			existing.Metric = append(existing.Metric, mf.GetMetric()...)
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	families := make([]*dto.MetricFamily, 0, len(names))
	for _, name := range names {
		families = append(families, byName[name])
	}

	s.mu.Lock()
	s.families = families
	s.mu.Unlock()
	return nil
}

// parseFile decodes one text-exposition file into metric families.
// A partial result with a non-fatal parse warning is still accepted.
func parseFile(path string) (map[string]*dto.MetricFamily, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse exposition text: %w", err)
	}
	return mfs, nil
}

// Watch reloads the snapshot whenever a file in the directory is written,
// created, renamed or removed. It runs until ctx is cancelled. Reload errors
// are logged and leave the previous snapshot in place.
func (s *Source) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return err
	}

	slog.Info("textfile: watching for changes", "dir", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".prom" {
				continue
			}
			if err := s.Reload(); err != nil {
				slog.Error("textfile: reload failed — keeping previous snapshot",
					"dir", s.dir, "err", err)
				continue
			}
			slog.Debug("textfile: reloaded", "dir", s.dir, "trigger", event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("textfile: watcher error", "err", err)
		}
	}
}
