package itinerary

import (
	"context"
	"testing"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func haversineOptimize(ctx context.Context, req domain.OptimizationRequest) (*domain.OptimizationResult, error) {
	return services.Optimize(ctx, req, nil)
}

// gatedOptimize blocks each call until the test releases it.
type gatedOptimize struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gatedOptimize {
	return &gatedOptimize{entered: make(chan struct{}, 4), release: make(chan struct{})}
}

func (g *gatedOptimize) optimize(ctx context.Context, req domain.OptimizationRequest) (*domain.OptimizationResult, error) {
	g.entered <- struct{}{}
	<-g.release
	return services.Optimize(ctx, req, nil)
}

func seed(t *testing.T, it *Itinerary) {
	t.Helper()
	require.NoError(t, it.Add(domain.Stop{ID: "sigiriya", Name: "Sigiriya", Location: domain.LatLng{Lat: 7.9570, Lng: 80.7603}}))
	require.NoError(t, it.Add(domain.Stop{ID: "dambulla", Name: "Dambulla", Location: domain.LatLng{Lat: 7.8567, Lng: 80.6492}}))
	require.NoError(t, it.Add(domain.Stop{ID: "kandy", Name: "Kandy", Location: domain.LatLng{Lat: 7.2906, Lng: 80.6337}}))
}

func TestOptimizeCommitsReconciledPlan(t *testing.T) {
	it := New(haversineOptimize)
	seed(t, it)

	plan, err := it.Optimize(context.Background(), Options{TryAllStarts: true})
	require.NoError(t, err)
	require.Len(t, plan.Stops, 3)
	for _, s := range plan.Stops {
		assert.Equal(t, services.MatchStable, s.Status)
	}
	assert.Same(t, plan, it.Plan())
}

func TestMutationsInvalidatePlan(t *testing.T) {
	mutations := map[string]func(it *Itinerary) error{
		"add": func(it *Itinerary) error {
			return it.Add(domain.Stop{ID: "ella", Location: domain.LatLng{Lat: 6.8667, Lng: 81.0466}})
		},
		"remove":  func(it *Itinerary) error { return it.Remove("kandy") },
		"move":    func(it *Itinerary) error { return it.Move("kandy", -2) },
		"reorder": func(it *Itinerary) error { return it.Reorder([]string{"kandy", "sigiriya", "dambulla"}) },
		"visited": func(it *Itinerary) error { return it.SetVisited("dambulla", true) },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			it := New(haversineOptimize)
			seed(t, it)
			_, err := it.Optimize(context.Background(), Options{})
			require.NoError(t, err)
			require.NotNil(t, it.Plan())

			require.NoError(t, mutate(it))
			assert.Nil(t, it.Plan())
		})
	}
}

func TestVisitedStopsAreExcluded(t *testing.T) {
	it := New(haversineOptimize)
	seed(t, it)
	require.NoError(t, it.SetVisited("sigiriya", true))
	assert.True(t, it.Visited("sigiriya"))

	plan, err := it.Optimize(context.Background(), Options{})
	require.NoError(t, err)
	for _, s := range plan.Stops {
		assert.NotEqual(t, "sigiriya", s.ID)
	}

	require.NoError(t, it.SetVisited("dambulla", true))
	require.NoError(t, it.SetVisited("kandy", true))
	_, err = it.Optimize(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNothingToOptimize)
}

func TestNewerOptimizeSupersedesInFlight(t *testing.T) {
	gate := newGate()
	it := New(gate.optimize)
	seed(t, it)

	type outcome struct {
		plan *Plan
		err  error
	}
	first := make(chan outcome, 1)
	go func() {
		p, err := it.Optimize(context.Background(), Options{})
		first <- outcome{p, err}
	}()
	<-gate.entered

	second := make(chan outcome, 1)
	go func() {
		p, err := it.Optimize(context.Background(), Options{ReturnToStart: true})
		second <- outcome{p, err}
	}()
	<-gate.entered

	close(gate.release)

	o1 := <-first
	o2 := <-second
	assert.ErrorIs(t, o1.err, ErrStaleResult)
	assert.Nil(t, o1.plan)
	require.NoError(t, o2.err)
	assert.True(t, o2.plan.Result.ReturnToStart)
	assert.Same(t, o2.plan, it.Plan())
}

func TestMutationDuringOptimizeDiscardsResult(t *testing.T) {
	gate := newGate()
	it := New(gate.optimize)
	seed(t, it)

	done := make(chan error, 1)
	go func() {
		_, err := it.Optimize(context.Background(), Options{})
		done <- err
	}()
	<-gate.entered

	require.NoError(t, it.SetVisited("kandy", true))
	close(gate.release)

	assert.ErrorIs(t, <-done, ErrStaleResult)
	assert.Nil(t, it.Plan())
}

func TestCloseDiscardsInFlight(t *testing.T) {
	gate := newGate()
	it := New(gate.optimize)
	seed(t, it)

	done := make(chan error, 1)
	go func() {
		_, err := it.Optimize(context.Background(), Options{})
		done <- err
	}()
	<-gate.entered

	it.Close()
	close(gate.release)

	assert.ErrorIs(t, <-done, ErrStaleResult)
	assert.ErrorIs(t, it.Add(domain.Stop{ID: "x", Location: domain.LatLng{Lat: 1, Lng: 1}}), ErrClosed)
}

func TestAddValidation(t *testing.T) {
	it := New(haversineOptimize)
	seed(t, it)

	assert.ErrorIs(t, it.Add(domain.Stop{ID: "kandy", Location: domain.LatLng{Lat: 7, Lng: 80}}), domain.ErrInvalidStop)
	assert.ErrorIs(t, it.Add(domain.Stop{ID: domain.StartStopID, Location: domain.LatLng{Lat: 7, Lng: 80}}), domain.ErrInvalidStop)
	assert.ErrorIs(t, it.Remove("nope"), ErrUnknownStop)
	assert.ErrorIs(t, it.Reorder([]string{"kandy"}), domain.ErrInvalidStop)
	assert.Len(t, it.Stops(), 3)

	require.NoError(t, it.Move("kandy", -10))
	assert.Equal(t, "kandy", it.Stops()[0].ID)
}
