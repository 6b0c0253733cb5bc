package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"trip-route-service/internal/adapters/position"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/geo"
	"trip-route-service/internal/ports"
	"trip-route-service/internal/traffic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var origin = domain.LatLng{Lat: 6.9271, Lng: 79.8612}

type fakeDirections struct {
	mu    sync.Mutex
	dirs  *domain.Directions
	err   error
	gate  chan struct{}
	calls int
	last  domain.DirectionsRequest
}

func (f *fakeDirections) GetDirections(ctx context.Context, req domain.DirectionsRequest) (*domain.Directions, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	dirs, err, gate := f.dirs, f.err, f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return dirs, err
}

func (f *fakeDirections) set(dirs *domain.Directions, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs, f.err = dirs, err
}

func (f *fakeDirections) setGate(g chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = g
}

func (f *fakeDirections) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeDirections) Last() domain.DirectionsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeTraffic struct {
	mu    sync.Mutex
	route *domain.TrafficRoute
	err   error
	calls int
	last  domain.DirectionsRequest
}

func (f *fakeTraffic) ComputeTrafficRoute(_ context.Context, req domain.DirectionsRequest) (*domain.TrafficRoute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	return f.route, f.err
}

func (f *fakeTraffic) Last() domain.DirectionsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// slowUnsubscribe wraps a feed so the first unsubscribe blocks until release is closed.
type slowUnsubscribe struct {
	*position.Feed
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *slowUnsubscribe) Subscribe(ctx context.Context) (<-chan ports.PositionUpdate, func(), error) {
	updates, unsubscribe, err := s.Feed.Subscribe(ctx)
	if err != nil {
		return nil, nil, err
	}
	first := false
	s.once.Do(func() { first = true })
	if !first {
		return updates, unsubscribe, nil
	}
	return updates, func() {
		close(s.entered)
		<-s.release
		unsubscribe()
	}, nil
}

// stepEnds builds a single-leg directions response whose steps end at the given points.
func stepEnds(ends ...domain.LatLng) *domain.Directions {
	leg := domain.DirectionsLeg{DistanceMeters: 1000, DurationSeconds: 600}
	prev := origin
	for _, end := range ends {
		e := end
		leg.Steps = append(leg.Steps, domain.DirectionsStep{
			InstructionText: "step",
			DistanceMeters:  geo.ApproxMeters(prev, end),
			DurationSeconds: 60,
			EndPoint:        &e,
			Path:            []domain.LatLng{prev, end},
		})
		prev = end
	}
	return &domain.Directions{Legs: []domain.DirectionsLeg{leg}}
}

func eastOf(m float64) domain.LatLng { return geo.Offset(origin, 0, m) }

func testRoute() Route {
	return Route{
		Order: []domain.Stop{
			{ID: "a", Location: origin},
			{ID: "b", Location: eastOf(2000)},
		},
		TravelMode: domain.TravelModeDriving,
	}
}

func newTracker(t *testing.T, cfg Config, dirs *fakeDirections) (*Tracker, *position.Feed) {
	t.Helper()
	feed := position.NewFeed()
	tr := New(cfg, Deps{Positions: feed, Directions: dirs, Logger: zap.NewNop()})
	t.Cleanup(func() {
		if tr.State() == StateActive {
			_ = tr.Stop()
		}
	})
	return tr, feed
}

func publish(t *testing.T, feed *position.Feed, at domain.LatLng) {
	t.Helper()
	require.NoError(t, feed.Publish(domain.Position{LatLng: at, AccuracyMeters: 5}))
}

func waitFor(t *testing.T, tr *Tracker, cond func(s Snapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(tr.Snapshot()) }, 2*time.Second, 5*time.Millisecond)
}

func TestStartRequiresPositionSource(t *testing.T) {
	tr := New(Config{}, Deps{Directions: &fakeDirections{}, Logger: zap.NewNop()})
	err := tr.Start(context.Background(), testRoute())
	assert.ErrorIs(t, err, ErrNoPositionSource)
	assert.Equal(t, StateInactive, tr.State())
}

func TestStartFetchesPathAtFirstStep(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500), eastOf(1000), eastOf(2000))}
	tr, _ := newTracker(t, Config{}, dirs)

	require.NoError(t, tr.Start(context.Background(), testRoute()))

	s := tr.Snapshot()
	assert.Equal(t, StateActive, s.State)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, 0, s.CurrentStepIndex)
	require.NotNil(t, s.CurrentStep)
	assert.Equal(t, 600.0, s.DurationSeconds)
	assert.True(t, s.FollowCamera)

	assert.ErrorIs(t, tr.Start(context.Background(), testRoute()), ErrAlreadyActive)
}

func TestPositionNearStepEndAdvancesByOne(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500), eastOf(1000), eastOf(2000))}
	tr, feed := newTracker(t, Config{}, dirs)
	require.NoError(t, tr.Start(context.Background(), testRoute()))

	publish(t, feed, geo.Offset(eastOf(500), 8, 0))
	waitFor(t, tr, func(s Snapshot) bool { return s.CurrentStepIndex == 1 })

	// Far from the current step's end: no movement.
	publish(t, feed, eastOf(1800))
	waitFor(t, tr, func(s Snapshot) bool {
		return s.LastPosition != nil && s.LastPosition.Lng == eastOf(1800).Lng
	})
	assert.Equal(t, 1, tr.Snapshot().CurrentStepIndex)
}

func TestCoincidentStepEndsAdvanceOnePerUpdate(t *testing.T) {
	turn := eastOf(500)
	dirs := &fakeDirections{dirs: stepEnds(turn, turn, eastOf(2000))}
	tr, feed := newTracker(t, Config{}, dirs)
	require.NoError(t, tr.Start(context.Background(), testRoute()))

	publish(t, feed, turn)
	waitFor(t, tr, func(s Snapshot) bool { return s.CurrentStepIndex == 1 })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, tr.Snapshot().CurrentStepIndex)

	publish(t, feed, geo.Offset(turn, 1, 0))
	waitFor(t, tr, func(s Snapshot) bool { return s.CurrentStepIndex == 2 })
}

func TestNoAdvancePastLastStep(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500))}
	tr, feed := newTracker(t, Config{}, dirs)
	require.NoError(t, tr.Start(context.Background(), testRoute()))

	publish(t, feed, eastOf(500))
	waitFor(t, tr, func(s Snapshot) bool { return s.LastPosition != nil })
	assert.Equal(t, 0, tr.Snapshot().CurrentStepIndex)
}

func TestTickRefreshPreservesStepIndex(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500), eastOf(1000), eastOf(2000))}
	tr, feed := newTracker(t, Config{PathRefresh: 10 * time.Millisecond}, dirs)
	require.NoError(t, tr.Start(context.Background(), testRoute()))

	publish(t, feed, eastOf(500))
	waitFor(t, tr, func(s Snapshot) bool { return s.CurrentStepIndex == 1 })

	before := dirs.Calls()
	require.Eventually(t, func() bool { return dirs.Calls() >= before+3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, tr.Snapshot().CurrentStepIndex)

	// A shorter path keeps the index; there is simply no current step until the list grows back.
	dirs.set(stepEnds(eastOf(2000)), nil)
	waitFor(t, tr, func(s Snapshot) bool { return len(s.Steps) == 1 })
	s := tr.Snapshot()
	assert.Equal(t, 1, s.CurrentStepIndex)
	assert.Nil(t, s.CurrentStep)

	dirs.set(stepEnds(eastOf(500), eastOf(1000), eastOf(2000)), nil)
	waitFor(t, tr, func(s Snapshot) bool { return len(s.Steps) == 3 })
	s = tr.Snapshot()
	assert.Equal(t, 1, s.CurrentStepIndex)
	require.NotNil(t, s.CurrentStep)
}

func TestRefreshStartsFromLivePosition(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500), eastOf(1000), eastOf(2000))}
	tf := &fakeTraffic{}
	feed := position.NewFeed()
	tr := New(Config{PathRefresh: 10 * time.Millisecond, TrafficRefresh: 10 * time.Millisecond},
		Deps{Positions: feed, Directions: dirs, Traffic: tf, Logger: zap.NewNop()})
	require.NoError(t, tr.Start(context.Background(), testRoute()))
	defer tr.Stop()

	// No fix yet: the path starts at the first stop.
	assert.Equal(t, origin, dirs.Last().Origin)
	assert.Equal(t, origin, tf.Last().Origin)

	at := geo.Offset(eastOf(300), 20, 0)
	publish(t, feed, at)
	require.Eventually(t, func() bool {
		return dirs.Last().Origin == at && tf.Last().Origin == at
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, eastOf(2000), dirs.Last().Destination)
}

func TestRouteChangeResetsStepIndex(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500), eastOf(1000), eastOf(2000))}
	tr, feed := newTracker(t, Config{}, dirs)
	route := testRoute()
	require.NoError(t, tr.Start(context.Background(), route))

	publish(t, feed, eastOf(500))
	waitFor(t, tr, func(s Snapshot) bool { return s.CurrentStepIndex == 1 })

	calls := dirs.Calls()
	require.NoError(t, tr.SetRoute(context.Background(), route))
	assert.Equal(t, calls, dirs.Calls(), "unchanged route must not refetch")
	assert.Equal(t, 1, tr.Snapshot().CurrentStepIndex)

	changes := map[string]func(r Route) Route{
		"order": func(r Route) Route {
			r.Order = []domain.Stop{r.Order[1], r.Order[0]}
			return r
		},
		"mode": func(r Route) Route {
			r.TravelMode = domain.TravelModeWalking
			return r
		},
		"return to start": func(r Route) Route {
			r.ReturnToStart = !r.ReturnToStart
			return r
		},
	}
	north := 0.0
	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			north++
			at := geo.Offset(eastOf(500), north, 0)
			publish(t, feed, at)
			waitFor(t, tr, func(s Snapshot) bool {
				return s.LastPosition != nil && s.LastPosition.Lat == at.Lat && s.CurrentStepIndex == 1
			})

			route = change(route)
			require.NoError(t, tr.SetRoute(context.Background(), route))
			assert.Equal(t, 0, tr.Snapshot().CurrentStepIndex)
			assert.Len(t, tr.Snapshot().Steps, 3)
		})
	}
}

func TestPositionErrorDegradesWithoutStopping(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500), eastOf(1000))}
	tr, feed := newTracker(t, Config{}, dirs)
	require.NoError(t, tr.Start(context.Background(), testRoute()))

	feed.PublishError(domain.PositionDenied, "permission denied")
	waitFor(t, tr, func(s Snapshot) bool { return !s.Tracking })

	s := tr.Snapshot()
	assert.Equal(t, StateActive, s.State)
	assert.Len(t, s.Steps, 2)
	require.NotEmpty(t, s.Warnings)
	assert.Equal(t, "position", s.Warnings[0].Source)

	publish(t, feed, eastOf(100))
	waitFor(t, tr, func(s Snapshot) bool { return s.Tracking })
}

func TestPathErrorKeepsLastPath(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500), eastOf(1000))}
	tr, _ := newTracker(t, Config{PathRefresh: 10 * time.Millisecond}, dirs)
	require.NoError(t, tr.Start(context.Background(), testRoute()))

	dirs.set(nil, &domain.ProviderError{Provider: "directions", Op: "get directions", Status: "OVER_QUERY_LIMIT"})
	waitFor(t, tr, func(s Snapshot) bool {
		for _, w := range s.Warnings {
			if w.Source == "path" {
				return true
			}
		}
		return false
	})

	s := tr.Snapshot()
	assert.Equal(t, StateActive, s.State)
	assert.Len(t, s.Steps, 2)
}

func TestStartWithFailingPathStillActivates(t *testing.T) {
	dirs := &fakeDirections{err: errors.New("boom")}
	tr, _ := newTracker(t, Config{}, dirs)

	require.NoError(t, tr.Start(context.Background(), testRoute()))
	s := tr.Snapshot()
	assert.Equal(t, StateActive, s.State)
	assert.Empty(t, s.Steps)
	assert.Nil(t, s.CurrentStep)
	require.Len(t, s.Warnings, 1)
	assert.Equal(t, "path", s.Warnings[0].Source)
}

func TestCameraFollow(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500))}
	tr, feed := newTracker(t, Config{}, dirs)

	assert.ErrorIs(t, tr.Pan(), ErrNotActive)
	assert.ErrorIs(t, tr.Recenter(), ErrNotActive)

	require.NoError(t, tr.Start(context.Background(), testRoute()))
	_, ok := tr.CameraTarget()
	assert.False(t, ok, "no position yet")

	publish(t, feed, eastOf(50))
	require.Eventually(t, func() bool { _, ok := tr.CameraTarget(); return ok }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, tr.Pan())
	_, ok = tr.CameraTarget()
	assert.False(t, ok)
	assert.False(t, tr.Snapshot().FollowCamera)

	require.NoError(t, tr.Recenter())
	at, ok := tr.CameraTarget()
	require.True(t, ok)
	assert.InDelta(t, eastOf(50).Lng, at.Lng, 1e-12)

	require.NoError(t, tr.Pan())
	require.NoError(t, tr.Stop())
	assert.True(t, tr.Snapshot().FollowCamera)
}

func TestStopCancelsLoopsAndDiscardsState(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500), eastOf(1000))}
	tr, feed := newTracker(t, Config{PathRefresh: 5 * time.Millisecond, TrafficRefresh: 5 * time.Millisecond}, dirs)
	require.NoError(t, tr.Start(context.Background(), testRoute()))

	require.NoError(t, tr.Stop())
	assert.ErrorIs(t, tr.Stop(), ErrNotActive)

	s := tr.Snapshot()
	assert.Equal(t, StateInactive, s.State)
	assert.Empty(t, s.Steps)
	assert.Equal(t, 0, s.CurrentStepIndex)

	calls := dirs.Calls()
	publish(t, feed, eastOf(500))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, dirs.Calls())
	assert.Nil(t, tr.Snapshot().LastPosition)
}

func TestStopIsNotHeldByNextSession(t *testing.T) {
	src := &slowUnsubscribe{Feed: position.NewFeed(), entered: make(chan struct{}), release: make(chan struct{})}
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500))}
	tr := New(Config{}, Deps{Positions: src, Directions: dirs, Logger: zap.NewNop()})
	require.NoError(t, tr.Start(context.Background(), testRoute()))

	stopped := make(chan error, 1)
	go func() { stopped <- tr.Stop() }()
	<-src.entered

	// The first session is already inactive, so a new one can start while Stop is unwinding.
	require.NoError(t, tr.Start(context.Background(), testRoute()))
	close(src.release)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop waited on the loops of the session that replaced it")
	}
	assert.Equal(t, StateActive, tr.State())
	require.NoError(t, tr.Stop())
}

func TestStaleFetchAfterStopIsDiscarded(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500))}
	tr, _ := newTracker(t, Config{}, dirs)
	route := testRoute()
	require.NoError(t, tr.Start(context.Background(), route))

	gate := make(chan struct{})
	dirs.setGate(gate)
	dirs.set(stepEnds(eastOf(500), eastOf(900), eastOf(1300)), nil)

	done := make(chan error, 1)
	calls := dirs.Calls()
	go func() {
		route.ReturnToStart = true
		done <- tr.SetRoute(context.Background(), route)
	}()
	require.Eventually(t, func() bool { return dirs.Calls() > calls }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, tr.Stop())
	close(gate)
	require.NoError(t, <-done)

	s := tr.Snapshot()
	assert.Equal(t, StateInactive, s.State)
	assert.Empty(t, s.Steps)
}

func TestTrafficUsesNativeBands(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500), eastOf(1000))}
	tf := &fakeTraffic{route: &domain.TrafficRoute{Legs: []domain.TrafficLeg{{
		Points:    []domain.LatLng{origin, eastOf(500), eastOf(1000)},
		Intervals: []domain.SpeedInterval{{StartIndex: 0, EndIndex: 2, Speed: domain.SpeedTrafficJam}},
	}}}}
	feed := position.NewFeed()
	tr := New(Config{}, Deps{Positions: feed, Directions: dirs, Traffic: tf, Logger: zap.NewNop()})
	require.NoError(t, tr.Start(context.Background(), testRoute()))
	defer tr.Stop()

	s := tr.Snapshot()
	assert.Equal(t, traffic.SourceSpeedBands, s.TrafficSource)
	require.Len(t, s.Traffic, 1)
	assert.Equal(t, traffic.Congestion, s.Traffic[0].Level)
}

func TestTrafficFallsBackForWalking(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500), eastOf(1000))}
	tf := &fakeTraffic{}
	feed := position.NewFeed()
	tr := New(Config{}, Deps{Positions: feed, Directions: dirs, Traffic: tf, Logger: zap.NewNop()})

	route := testRoute()
	route.TravelMode = domain.TravelModeWalking
	require.NoError(t, tr.Start(context.Background(), route))
	defer tr.Stop()

	s := tr.Snapshot()
	assert.Equal(t, traffic.SourceLegRatio, s.TrafficSource)
	require.Len(t, s.Traffic, 1)
	assert.Equal(t, traffic.FreeFlow, s.Traffic[0].Level)
	assert.Zero(t, tf.calls)
}

func TestTrafficErrorIsWarning(t *testing.T) {
	dirs := &fakeDirections{dirs: stepEnds(eastOf(500))}
	tf := &fakeTraffic{err: errors.New("quota")}
	feed := position.NewFeed()
	tr := New(Config{}, Deps{Positions: feed, Directions: dirs, Traffic: tf, Logger: zap.NewNop()})
	require.NoError(t, tr.Start(context.Background(), testRoute()))
	defer tr.Stop()

	s := tr.Snapshot()
	assert.Equal(t, StateActive, s.State)
	require.NotEmpty(t, s.Warnings)
	assert.Equal(t, "traffic", s.Warnings[len(s.Warnings)-1].Source)
}
