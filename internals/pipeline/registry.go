package pipeline

import (
	"errors"
	"fmt"

	"docpipe/internals/schemas"
)

var ErrUnknownStage = errors.New("unknown stage")

// Registration pairs a stage implementation with the payload variants it
// accepts as input. The orchestrator checks the hop before each invocation
// instead of trusting implicit structural agreement between stages.
type Registration struct {
	Stage    Stage
	Consumes []schemas.PayloadKind
}

func (r Registration) accepts(kind schemas.PayloadKind) bool {
	for _, accepted := range r.Consumes {
		if accepted == kind {
			return true
		}
	}
	return false
}

// Registry maps stage names to implementations. It is assembled once at
// process startup, with collaborator clients already injected into each
// stage; tasks never construct stages.
type Registry struct {
	stages map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Registration)}
}

func (r *Registry) Register(name string, stage Stage, consumes ...schemas.PayloadKind) error {
	if name == "" {
		return errors.New("stage name is required")
	}
	if stage == nil {
		return fmt.Errorf("stage %q is nil", name)
	}
	if _, exists := r.stages[name]; exists {
		return fmt.Errorf("duplicate stage name: %s", name)
	}
	r.stages[name] = Registration{Stage: stage, Consumes: consumes}
	return nil
}

func (r *Registry) Resolve(name string) (Registration, error) {
	registration, ok := r.stages[name]
	if !ok {
		return Registration{}, fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	return registration, nil
}
