package convert

import (
	"context"
	"sort"
	"sync"
)

// Registry holds the available backends and resolves conversion requests to
// the best one for a given format pair.
type Registry struct {
	mu      sync.Mutex
	entries []*registration
	probes  map[string]error
}

type registration struct {
	backend  Backend
	priority int
	order    int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{probes: make(map[string]error)}
}

// Register adds a backend with the given priority. Higher priorities win when
// several backends handle the same pair; equal priorities resolve in
// registration order.
func (r *Registry) Register(backend Backend, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, &registration{
		backend:  backend,
		priority: priority,
		order:    len(r.entries),
	})
}

// Resolve picks the highest-priority available backend for the pair. It
// returns ErrUnsupportedFormat when no backend declares the pair, and also
// when every declaring backend fails its availability probe.
func (r *Registry) Resolve(ctx context.Context, source, target string) (Backend, error) {
	pair := NormalizePair(source, target)

	candidates := r.candidatesFor(pair)
	if len(candidates) == 0 {
		return nil, Wrap(ErrUnsupportedFormat, "", "resolve", pair.Source+" to "+pair.Target+" has no backend", nil)
	}

	var lastProbe error
	for _, candidate := range candidates {
		if err := r.probe(ctx, candidate.backend); err != nil {
			lastProbe = err
			continue
		}
		return candidate.backend, nil
	}
	return nil, Wrap(ErrUnsupportedFormat, "", "resolve", pair.Source+" to "+pair.Target+" has no available backend", lastProbe)
}

// Supports reports whether any registered backend declares the pair,
// regardless of availability.
func (r *Registry) Supports(source, target string) bool {
	return len(r.candidatesFor(NormalizePair(source, target))) > 0
}

// Targets returns the sorted set of target formats reachable from the given
// source format via any declared pair.
func (r *Registry) Targets(source string) []string {
	source = normalizeFormat(source)
	seen := make(map[string]struct{})

	r.mu.Lock()
	for _, entry := range r.entries {
		for _, pair := range entry.backend.Pairs() {
			if pair.Source == source {
				seen[pair.Target] = struct{}{}
			}
		}
	}
	r.mu.Unlock()

	targets := make([]string, 0, len(seen))
	for target := range seen {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	return targets
}

// Descriptors lists the registered backends with cached probe results, in
// resolution order.
func (r *Registry) Descriptors(ctx context.Context) []Descriptor {
	r.mu.Lock()
	ordered := make([]*registration, len(r.entries))
	copy(ordered, r.entries)
	r.mu.Unlock()

	sortRegistrations(ordered)

	descriptors := make([]Descriptor, 0, len(ordered))
	for _, entry := range ordered {
		probeErr := r.probe(ctx, entry.backend)
		descriptor := Descriptor{
			Name:      entry.backend.Name(),
			Pairs:     entry.backend.Pairs(),
			Priority:  entry.priority,
			Available: probeErr == nil,
		}
		if probeErr != nil {
			descriptor.ProbeError = probeErr.Error()
		}
		descriptors = append(descriptors, descriptor)
	}
	return descriptors
}

func (r *Registry) candidatesFor(pair Pair) []*registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []*registration
	for _, entry := range r.entries {
		for _, declared := range entry.backend.Pairs() {
			if declared == pair {
				candidates = append(candidates, entry)
				break
			}
		}
	}
	sortRegistrations(candidates)
	return candidates
}

func (r *Registry) probe(ctx context.Context, backend Backend) error {
	name := backend.Name()

	r.mu.Lock()
	if err, ok := r.probes[name]; ok {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	err := backend.Probe(ctx)

	r.mu.Lock()
	r.probes[name] = err
	r.mu.Unlock()
	return err
}

func sortRegistrations(entries []*registration) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].order < entries[j].order
	})
}
