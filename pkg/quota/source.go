package quota

import (
	"context"
	"errors"
	"maps"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Source defines how plans are loaded into the quota service.
type Source interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// inMemSource implements the Source interface using an in-memory plan map.
type inMemSource struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewInMemSource returns an in-memory Source with a deep copy of the given
// plans.
func NewInMemSource(plans map[string]Plan) Source {
	return &inMemSource{plans: clonePlans(plans)}
}

// Load returns a copy of all available plans from memory.
func (s *inMemSource) Load(ctx context.Context) (map[string]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePlans(s.plans), nil
}

// yamlSource loads plans from a YAML file keyed by plan ID.
type yamlSource struct {
	path string
}

// NewYAMLSource returns a Source that reads plan definitions from a YAML
// file of the form:
//
//	free:
//	  id: free
//	  name: Free
//	  limits:
//	    notifications: 10000
//	  period_days: 30
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(ctx context.Context) (map[string]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	plans := make(map[string]Plan)
	if err := yaml.Unmarshal(raw, &plans); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	// The map key is authoritative when the id field is omitted.
	for id, plan := range plans {
		if plan.ID == "" {
			plan.ID = id
			plans[id] = plan
		}
	}

	return plans, nil
}

func clonePlans(plans map[string]Plan) map[string]Plan {
	out := make(map[string]Plan, len(plans))
	for id, plan := range plans {
		plan.Limits = maps.Clone(plan.Limits)
		out[id] = plan
	}
	return out
}
