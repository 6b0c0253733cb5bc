// Package itinerary holds the caller-side state around the stateless optimizer:
// the stop list, visited flags and the last optimization result.
package itinerary

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/services"
)

var (
	// ErrStaleResult is returned when an optimize call completes after a newer call,
	// an itinerary mutation or Close. Its result is discarded.
	ErrStaleResult = errors.New("itinerary: optimization result is stale")
	ErrClosed      = errors.New("itinerary: closed")
	ErrUnknownStop = errors.New("itinerary: unknown stop")
	// ErrNothingToOptimize is returned when every stop is visited or none were added.
	ErrNothingToOptimize = errors.New("itinerary: no remaining stops to optimize")
)

// OptimizeFunc matches services.Optimize with its provider bound.
type OptimizeFunc func(ctx context.Context, req domain.OptimizationRequest) (*domain.OptimizationResult, error)

// Options for one optimize call on an itinerary.
type Options struct {
	Start          *domain.LatLng
	ReturnToStart  bool
	TryAllStarts   bool
	Metric         domain.Metric
	TravelMode     domain.TravelMode
	DistanceWeight float64
	TimeWeight     float64
}

// Reconciled optimization result as shown to the caller.
type Plan struct {
	Result  *domain.OptimizationResult
	Stops   []services.ReconciledStop
	Version uint64
}

// Itinerary is the mutable state for one traveler. All methods are safe for concurrent use.
//
// Every mutation bumps the version and clears the last plan. An optimize call snapshots
// the version and only commits its plan if nothing changed while it ran.
type Itinerary struct {
	mu       sync.Mutex
	optimize OptimizeFunc
	stops    []domain.Stop
	visited  map[string]bool
	plan     *Plan
	version  uint64
	closed   bool
}

func New(optimize OptimizeFunc) *Itinerary {
	return &Itinerary{
		optimize: optimize,
		visited:  make(map[string]bool),
	}
}

func (it *Itinerary) invalidateLocked() {
	it.version++
	it.plan = nil
}

func (it *Itinerary) indexLocked(id string) int {
	return slices.IndexFunc(it.stops, func(s domain.Stop) bool { return s.ID == id })
}

// Add appends a stop. Ids must be unique and never use the reserved start id.
func (it *Itinerary) Add(s domain.Stop) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("add stop: %w", err)
	}
	if s.IsStart() {
		return fmt.Errorf("add stop: %w", &domain.ValidationError{Field: "id", Reason: "id is reserved for the live start"})
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return ErrClosed
	}
	if it.indexLocked(s.ID) >= 0 {
		return fmt.Errorf("add stop: %w", &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("duplicate stop id %q", s.ID)})
	}
	it.stops = append(it.stops, s)
	it.invalidateLocked()
	return nil
}

func (it *Itinerary) Remove(id string) error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return ErrClosed
	}
	i := it.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("remove stop %q: %w", id, ErrUnknownStop)
	}
	it.stops = slices.Delete(it.stops, i, i+1)
	delete(it.visited, id)
	it.invalidateLocked()
	return nil
}

// Move shifts a stop by delta positions, clamped to the list bounds.
func (it *Itinerary) Move(id string, delta int) error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return ErrClosed
	}
	i := it.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("move stop %q: %w", id, ErrUnknownStop)
	}
	j := min(max(i+delta, 0), len(it.stops)-1)
	if i == j {
		return nil
	}
	s := it.stops[i]
	it.stops = slices.Delete(it.stops, i, i+1)
	it.stops = slices.Insert(it.stops, j, s)
	it.invalidateLocked()
	return nil
}

// Reorder replaces the manual order. ids must be a permutation of the current stop ids.
func (it *Itinerary) Reorder(ids []string) error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return ErrClosed
	}
	if len(ids) != len(it.stops) {
		return &domain.ValidationError{Field: "order", Reason: fmt.Sprintf("expected %d ids, got %d", len(it.stops), len(ids))}
	}
	next := make([]domain.Stop, 0, len(ids))
	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		i := it.indexLocked(id)
		if i < 0 {
			return fmt.Errorf("reorder: %q: %w", id, ErrUnknownStop)
		}
		if used[id] {
			return &domain.ValidationError{Field: "order", Reason: fmt.Sprintf("duplicate id %q", id)}
		}
		used[id] = true
		next = append(next, it.stops[i])
	}
	it.stops = next
	it.invalidateLocked()
	return nil
}

// SetVisited toggles the visited flag of a stop.
func (it *Itinerary) SetVisited(id string, visited bool) error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return ErrClosed
	}
	if it.indexLocked(id) < 0 {
		return fmt.Errorf("set visited %q: %w", id, ErrUnknownStop)
	}
	if it.visited[id] == visited {
		return nil
	}
	if visited {
		it.visited[id] = true
	} else {
		delete(it.visited, id)
	}
	it.invalidateLocked()
	return nil
}

// Stops returns a copy of all stops in manual order.
func (it *Itinerary) Stops() []domain.Stop {
	it.mu.Lock()
	defer it.mu.Unlock()
	return slices.Clone(it.stops)
}

// Remaining returns the unvisited stops in manual order.
func (it *Itinerary) Remaining() []domain.Stop {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.remainingLocked()
}

func (it *Itinerary) remainingLocked() []domain.Stop {
	out := make([]domain.Stop, 0, len(it.stops))
	for _, s := range it.stops {
		if !it.visited[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func (it *Itinerary) Visited(id string) bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.visited[id]
}

// Plan returns the last committed plan, or nil when it was invalidated.
func (it *Itinerary) Plan() *Plan {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.plan
}

func (it *Itinerary) Version() uint64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.version
}

// Optimize runs the optimizer over the remaining stops and reconciles its output.
//
// Starting a call supersedes any call still in flight: when the older call returns
// it gets ErrStaleResult and its plan is dropped. The same happens if the itinerary
// is mutated or closed while the optimizer runs.
func (it *Itinerary) Optimize(ctx context.Context, opts Options) (*Plan, error) {
	it.mu.Lock()
	if it.closed {
		it.mu.Unlock()
		return nil, ErrClosed
	}
	remaining := it.remainingLocked()
	if len(remaining) == 0 {
		it.mu.Unlock()
		return nil, ErrNothingToOptimize
	}
	it.invalidateLocked()
	version := it.version
	it.mu.Unlock()

	res, err := it.optimize(ctx, domain.OptimizationRequest{
		Stops:          remaining,
		Start:          opts.Start,
		ReturnToStart:  opts.ReturnToStart,
		TryAllStarts:   opts.TryAllStarts,
		Metric:         opts.Metric,
		TravelMode:     opts.TravelMode,
		DistanceWeight: opts.DistanceWeight,
		TimeWeight:     opts.TimeWeight,
	})

	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed || it.version != version {
		return nil, ErrStaleResult
	}
	if err != nil {
		return nil, fmt.Errorf("optimize itinerary: %w", err)
	}

	plan := &Plan{
		Result:  res,
		Stops:   services.Reconcile(res.Order, remaining, opts.Start),
		Version: version,
	}
	it.plan = plan
	return plan, nil
}

// Close discards the plan and rejects further calls. In-flight optimize calls become stale.
func (it *Itinerary) Close() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.closed = true
	it.invalidateLocked()
}
