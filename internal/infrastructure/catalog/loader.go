// Package catalog loads quest definitions from a YAML file and pushes them
// into whichever definition store the process runs on.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/pkg/logger"
)

// ErrInvalidCatalog wraps every problem found in a catalog file.
var ErrInvalidCatalog = shared.NewDomainError("catalog", "Parse", shared.ErrInvalidInput, "invalid quest catalog")

// file is the on-disk layout.
type file struct {
	Quests []entry `yaml:"quests"`
}

// entry mirrors quest.Definition; Active defaults to true when omitted.
type entry struct {
	ID            string        `yaml:"id"`
	Type          string        `yaml:"type"`
	Title         string        `yaml:"title"`
	Description   string        `yaml:"description"`
	Target        int           `yaml:"target"`
	Reward        shared.Reward `yaml:"reward"`
	MinAccuracy   int           `yaml:"min_accuracy"`
	ChallengeType string        `yaml:"challenge_type"`
	Active        *bool         `yaml:"active"`
}

func (e entry) definition() quest.Definition {
	active := true
	if e.Active != nil {
		active = *e.Active
	}
	return quest.Definition{
		ID:            e.ID,
		Type:          quest.Type(e.Type),
		Title:         e.Title,
		Description:   e.Description,
		TargetValue:   e.Target,
		Reward:        e.Reward,
		MinAccuracy:   shared.Accuracy(e.MinAccuracy),
		ChallengeType: e.ChallengeType,
		Active:        active,
	}
}

// Parse decodes and validates a catalog. Unknown keys, duplicate IDs and
// invalid definitions are all reported together.
func Parse(r io.Reader) ([]quest.Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, shared.WrapError("catalog", "Parse", shared.ErrInvalidInput, "malformed yaml", err)
	}

	var problems []error
	seen := make(map[string]bool, len(f.Quests))
	defs := make([]quest.Definition, 0, len(f.Quests))
	for i, e := range f.Quests {
		d := e.definition()
		if err := d.Validate(); err != nil {
			problems = append(problems, fmt.Errorf("quests[%d] %q: %w", i, d.ID, err))
			continue
		}
		if seen[d.ID] {
			problems = append(problems, fmt.Errorf("quests[%d]: duplicate id %q", i, d.ID))
			continue
		}
		seen[d.ID] = true
		defs = append(defs, d)
	}

	if len(problems) > 0 {
		return nil, shared.WrapError("catalog", "Parse", shared.ErrInvalidInput, "invalid quest catalog", errors.Join(problems...))
	}
	return defs, nil
}

// LoadFile reads and parses a catalog file.
func LoadFile(path string) ([]quest.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quest catalog %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADER
// ══════════════════════════════════════════════════════════════════════════════

// SinkFunc stores a freshly parsed catalog.
type SinkFunc func(ctx context.Context, defs []quest.Definition) error

// Loader reads the catalog file and pushes it into a sink. An empty path
// leaves the store untouched, so the tracker falls back to its built-in set.
type Loader struct {
	path     string
	sink     SinkFunc
	onReload []func()
	log      *logger.Logger
}

// NewLoader creates a Loader. onReload hooks run after every successful push.
func NewLoader(path string, sink SinkFunc, log *logger.Logger, onReload ...func()) *Loader {
	if log == nil {
		log = logger.NewNop()
	}
	return &Loader{path: path, sink: sink, onReload: onReload, log: log}
}

// Reload loads the file and pushes it. It returns the number of definitions stored.
func (l *Loader) Reload(ctx context.Context) (int, error) {
	if l.path == "" {
		l.log.Info("quest catalog path not set, using built-in quests")
		return 0, nil
	}

	defs, err := LoadFile(l.path)
	if err != nil {
		return 0, err
	}
	if err := l.sink(ctx, defs); err != nil {
		return 0, fmt.Errorf("store quest catalog: %w", err)
	}
	for _, hook := range l.onReload {
		hook()
	}

	l.log.Info("quest catalog loaded",
		logger.String("path", l.path),
		logger.Int("definitions", len(defs)),
	)
	return len(defs), nil
}
