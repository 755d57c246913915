// Package workflow loads declarative pipeline descriptors: an ordered list
// of (stage, command) steps identified by a workflow name. Descriptors are
// YAML files in a configurable directory; a couple of defaults are compiled
// in so a fresh install can process documents without any authoring.
package workflow

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	z "github.com/Oudwins/zog"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaults embed.FS

var ErrNotFound = errors.New("workflow not found")

type Step struct {
	Stage   string `yaml:"stage" zog:"stage"`
	Command string `yaml:"command" zog:"command"`
}

type Descriptor struct {
	Name        string `yaml:"name" zog:"name"`
	Description string `yaml:"description" zog:"description"`
	Steps       []Step `yaml:"steps" zog:"steps"`
}

var stepSchema = z.Struct(z.Shape{
	"Stage":   z.String().Required().Trim(),
	"Command": z.String().Required().Trim(),
})

var DescriptorSchema = z.Struct(z.Shape{
	"Name":        z.String().Required().Trim(),
	"Description": z.String().Optional().Trim(),
	"Steps":       z.Slice(stepSchema).Min(1, z.Message("workflow needs at least one step")),
})

var workflowNamePattern = regexp.MustCompile(`^[a-z0-9_\-]+$`)

// Store resolves workflow names to descriptors. Files are re-read on every
// Resolve: a task always runs against the descriptor on disk at the moment
// it starts, never a cached copy.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Resolve(name string) (Descriptor, error) {
	if !workflowNamePattern.MatchString(name) {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	data, err := s.read(name)
	if err != nil {
		return Descriptor{}, err
	}

	descriptor, err := parseDescriptor(data)
	if err != nil {
		return Descriptor{}, fmt.Errorf("workflow %q: %w", name, err)
	}
	return descriptor, nil
}

func (s *Store) read(name string) ([]byte, error) {
	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, name+".yaml"))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	data, err := defaults.ReadFile("defaults/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return data, nil
}

func parseDescriptor(data []byte) (Descriptor, error) {
	var payload map[string]any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return Descriptor{}, fmt.Errorf("invalid yaml: %w", err)
	}

	descriptor := Descriptor{}
	if issues := DescriptorSchema.Parse(payload, &descriptor); issues != nil {
		return Descriptor{}, fmt.Errorf("invalid descriptor: %v", z.Issues.Flatten(issues))
	}
	return descriptor, nil
}
