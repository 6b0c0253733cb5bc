// Package navigation tracks a traveler's live progress along an optimized route.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/geo"
	"trip-route-service/internal/platform/obs"
	"trip-route-service/internal/ports"
	"trip-route-service/internal/traffic"

	"go.uber.org/zap"
)

var (
	ErrNotActive        = errors.New("navigation not active")
	ErrAlreadyActive    = errors.New("navigation already active")
	ErrNoPositionSource = errors.New("no live position source")
)

const (
	// AdvanceMeters is the distance to a step's end anchor under which the tracker moves to the next step.
	AdvanceMeters = 35.0

	DefaultPathRefresh    = 30 * time.Second
	DefaultTrafficRefresh = 30 * time.Second

	maxWarnings = 10
)

type State string

const (
	StateInactive State = "inactive"
	StateActive   State = "active"
)

// Route is the optimized order being navigated plus the settings that shape its path.
type Route struct {
	Order         []domain.Stop
	ReturnToStart bool
	TravelMode    domain.TravelMode
}

func (r Route) equal(o Route) bool {
	if r.ReturnToStart != o.ReturnToStart || r.TravelMode != o.TravelMode {
		return false
	}
	return slices.EqualFunc(r.Order, o.Order, func(a, b domain.Stop) bool {
		return a.ID == b.ID && a.Location == b.Location
	})
}

type Config struct {
	PathRefresh    time.Duration
	TrafficRefresh time.Duration
}

type Deps struct {
	Positions  ports.PositionSource
	Directions ports.DirectionsProvider
	Traffic    ports.TrafficRouteProvider
	Logger     *zap.Logger
}

// Warning is a non-fatal degradation recorded while a session is active.
type Warning struct {
	Source  string    `json:"source"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Snapshot is a copy of the tracker state safe to hand to callers.
type Snapshot struct {
	State                    State             `json:"state"`
	Steps                    []domain.NavStep  `json:"steps"`
	CurrentStepIndex         int               `json:"current_step_index"`
	CurrentStep              *domain.NavStep   `json:"current_step,omitempty"`
	LastPosition             *domain.Position  `json:"last_position,omitempty"`
	FollowCamera             bool              `json:"follow_camera"`
	Tracking                 bool              `json:"tracking"`
	DurationSeconds          float64           `json:"duration_seconds"`
	DurationInTrafficSeconds *float64          `json:"duration_in_traffic_seconds,omitempty"`
	Traffic                  []traffic.Segment `json:"-"`
	TrafficSource            traffic.Source    `json:"traffic_source"`
	Warnings                 []Warning         `json:"warnings,omitempty"`
}

// Tracker is the navigation session for one itinerary.
//
// States are Inactive -> Active -> Inactive. While Active, the tracker consumes the latest
// live position and keeps two refresh loops (path and traffic) running until Stop.
type Tracker struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	mu       sync.Mutex
	state    State
	route    Route
	steps    []domain.NavStep
	legs     []domain.DirectionsLeg
	current  int
	lastPos  *domain.Position
	follow   bool
	tracking bool
	duration float64
	inTraff  *float64
	segments []traffic.Segment
	source   traffic.Source
	warnings []Warning

	// session is bumped on Start and Stop; path is bumped on every route change.
	// Fetches that finish under an older generation are discarded.
	session uint64
	path    uint64

	// Owned by the running session; loops is fresh per Start so Stop waits only on its own goroutines.
	cancel      context.CancelFunc
	unsubscribe func()
	loops       *sync.WaitGroup
}

func New(cfg Config, deps Deps) *Tracker {
	if cfg.PathRefresh <= 0 {
		cfg.PathRefresh = DefaultPathRefresh
	}
	if cfg.TrafficRefresh <= 0 {
		cfg.TrafficRefresh = DefaultTrafficRefresh
	}
	log := deps.Logger
	if log == nil {
		log = zap.L()
	}
	return &Tracker{
		cfg:    cfg,
		deps:   deps,
		log:    log.Named("navigation"),
		now:    time.Now,
		state:  StateInactive,
		follow: true,
		source: traffic.SourceNone,
	}
}

// Start subscribes to the position source, fetches the path for the route and launches
// the refresh loops. Path and traffic failures are recorded as warnings; only a missing
// or failing position source aborts the start.
func (t *Tracker) Start(ctx context.Context, route Route) (err error) {
	defer obs.Time(ctx, "navigation.Start")(&err)

	if t.deps.Positions == nil {
		return ErrNoPositionSource
	}
	if route.TravelMode == "" {
		route.TravelMode = domain.TravelModeDriving
	}

	t.mu.Lock()
	if t.state == StateActive {
		t.mu.Unlock()
		return ErrAlreadyActive
	}

	// Background work outlives the request that started it; Stop cancels it.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	updates, unsubscribe, err := t.deps.Positions.Subscribe(loopCtx)
	if err != nil {
		t.mu.Unlock()
		cancel()
		return fmt.Errorf("navigation start: subscribe: %w", err)
	}

	t.session++
	t.path++
	session, path := t.session, t.path
	t.state = StateActive
	t.route = route
	t.steps, t.legs, t.current = nil, nil, 0
	t.lastPos = nil
	t.follow = true
	t.tracking = true
	t.duration, t.inTraff = 0, nil
	t.segments, t.source = nil, traffic.SourceNone
	t.warnings = nil
	t.cancel = cancel
	t.unsubscribe = unsubscribe
	loops := &sync.WaitGroup{}
	t.loops = loops

	loops.Go(func() { t.consumePositions(loopCtx, session, updates) })
	loops.Go(func() { t.every(loopCtx, t.cfg.PathRefresh, func() { t.tickPath(loopCtx, session) }) })
	loops.Go(func() { t.every(loopCtx, t.cfg.TrafficRefresh, func() { t.refreshTraffic(loopCtx, session) }) })
	t.mu.Unlock()

	obs.NavigationSessionsActive.Inc()
	t.log.Info("navigation started",
		zap.Int("stops", len(route.Order)),
		zap.String("mode", string(route.TravelMode)),
		zap.Bool("return_to_start", route.ReturnToStart),
	)

	t.refreshPath(ctx, session, path, route, true)
	t.refreshTraffic(ctx, session)
	return nil
}

// Stop cancels the refresh loops, unsubscribes from the position source and discards the
// step list. followCamera is left enabled for the next session.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return ErrNotActive
	}
	t.session++
	t.state = StateInactive
	t.steps, t.legs, t.current = nil, nil, 0
	t.lastPos = nil
	t.follow = true
	t.tracking = false
	t.duration, t.inTraff = 0, nil
	t.segments, t.source = nil, traffic.SourceNone
	t.warnings = nil
	cancel, unsubscribe, loops := t.cancel, t.unsubscribe, t.loops
	t.cancel, t.unsubscribe, t.loops = nil, nil, nil
	t.mu.Unlock()

	cancel()
	unsubscribe()
	loops.Wait()

	obs.NavigationSessionsActive.Dec()
	t.log.Info("navigation stopped")
	return nil
}

// SetRoute replaces the navigated route. When the order, travel mode or return-to-start
// setting changed, the step list is refetched and the step index resets to 0.
func (t *Tracker) SetRoute(ctx context.Context, route Route) error {
	if route.TravelMode == "" {
		route.TravelMode = domain.TravelModeDriving
	}

	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return ErrNotActive
	}
	if t.route.equal(route) {
		t.mu.Unlock()
		return nil
	}
	t.path++
	session, path := t.session, t.path
	t.route = route
	t.steps, t.legs, t.current = nil, nil, 0
	t.duration, t.inTraff = 0, nil
	t.mu.Unlock()

	t.log.Debug("navigation route changed", zap.Int("stops", len(route.Order)))
	t.refreshPath(ctx, session, path, route, true)
	t.refreshTraffic(ctx, session)
	return nil
}

// Pan records a user map gesture: the camera stops following the traveler.
func (t *Tracker) Pan() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return ErrNotActive
	}
	t.follow = false
	return nil
}

// Recenter re-enables camera follow.
func (t *Tracker) Recenter() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return ErrNotActive
	}
	t.follow = true
	return nil
}

// CameraTarget returns where the map should center, if the camera follows the traveler.
func (t *Tracker) CameraTarget() (domain.LatLng, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive || !t.follow || t.lastPos == nil {
		return domain.LatLng{}, false
	}
	return t.lastPos.LatLng, true
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		State:            t.state,
		Steps:            slices.Clone(t.steps),
		CurrentStepIndex: t.current,
		FollowCamera:     t.follow,
		Tracking:         t.tracking,
		DurationSeconds:  t.duration,
		Traffic:          slices.Clone(t.segments),
		TrafficSource:    t.source,
		Warnings:         slices.Clone(t.warnings),
	}
	if t.current < len(t.steps) {
		step := t.steps[t.current]
		s.CurrentStep = &step
	}
	if t.lastPos != nil {
		p := *t.lastPos
		s.LastPosition = &p
	}
	if t.inTraff != nil {
		v := *t.inTraff
		s.DurationInTrafficSeconds = &v
	}
	return s
}

func (t *Tracker) consumePositions(ctx context.Context, session uint64, updates <-chan ports.PositionUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				t.mu.Lock()
				if t.session == session {
					t.tracking = false
					t.warnLocked("position", "position source closed")
				}
				t.mu.Unlock()
				return
			}
			t.applyPosition(session, u)
		}
	}
}

func (t *Tracker) applyPosition(session uint64, u ports.PositionUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != session || t.state != StateActive {
		return
	}

	if u.Err != nil {
		// Keep the last route on screen; only live tracking is lost.
		t.tracking = false
		t.warnLocked("position", u.Err.Error())
		return
	}

	p := u.Position
	t.lastPos = &p
	t.tracking = true

	if t.current+1 >= len(t.steps) {
		return
	}
	end := t.steps[t.current].EndPoint
	if end == nil {
		return
	}
	if geo.ApproxMeters(p.LatLng, *end) < AdvanceMeters {
		t.current++
		obs.NavigationStepAdvances.Inc()
		t.log.Debug("navigation step advanced", zap.Int("step", t.current))
	}
}

func (t *Tracker) every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (t *Tracker) tickPath(ctx context.Context, session uint64) {
	t.mu.Lock()
	if t.session != session {
		t.mu.Unlock()
		return
	}
	path, route := t.path, t.route
	t.mu.Unlock()

	t.refreshPath(ctx, session, path, route, false)
}

// refreshPath fetches directions for the route and commits them if neither the session
// nor the route changed meanwhile. A reset refresh starts at step 0; a tick refresh keeps
// the current step index even when the new list is shorter, so the index never moves back.
func (t *Tracker) refreshPath(ctx context.Context, session, path uint64, route Route, reset bool) {
	dirs, err := t.fetchDirections(ctx, route, t.origin())

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != session || t.path != path {
		return
	}
	if err != nil {
		t.warnLocked("path", err.Error())
		return
	}

	t.steps = dirs.FlattenSteps()
	t.legs = dirs.Legs
	t.duration, t.inTraff = dirs.Totals()
	if reset {
		t.current = 0
	}
}

func (t *Tracker) origin() *domain.LatLng {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.originLocked()
}

// originLocked is the live position once one is known; before that the route starts at its first stop.
func (t *Tracker) originLocked() *domain.LatLng {
	if t.lastPos == nil {
		return nil
	}
	at := t.lastPos.LatLng
	return &at
}

func (t *Tracker) fetchDirections(ctx context.Context, route Route, origin *domain.LatLng) (_ *domain.Directions, err error) {
	defer obs.Time(ctx, "navigation.fetchDirections")(&err)

	req, ok := domain.NewDirectionsRequest(route.Order, origin, route.ReturnToStart, route.TravelMode)
	if !ok || t.deps.Directions == nil {
		return &domain.Directions{}, nil
	}
	dirs, err := t.deps.Directions.GetDirections(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch directions: %w", err)
	}
	if dirs == nil {
		dirs = &domain.Directions{}
	}
	return dirs, nil
}

// refreshTraffic recomputes the congestion segments. Native speed bands are fetched for
// traffic-aware modes; otherwise, or when the provider has no bands, the directions legs
// are classified by their traffic ratio.
func (t *Tracker) refreshTraffic(ctx context.Context, session uint64) {
	t.mu.Lock()
	if t.session != session {
		t.mu.Unlock()
		return
	}
	path, route, legs := t.path, t.route, t.legs
	origin := t.originLocked()
	t.mu.Unlock()

	var native *domain.TrafficRoute
	var fetchErr error
	if t.deps.Traffic != nil && route.TravelMode.TrafficAware() {
		if req, ok := domain.NewDirectionsRequest(route.Order, origin, route.ReturnToStart, route.TravelMode); ok {
			native, fetchErr = t.deps.Traffic.ComputeTrafficRoute(ctx, req)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != session || t.path != path {
		return
	}
	if fetchErr != nil {
		t.warnLocked("traffic", fmt.Sprintf("compute traffic route: %v", fetchErr))
		return
	}
	t.segments, t.source = traffic.Classify(native, legs, route.TravelMode)
}

func (t *Tracker) warnLocked(source, msg string) {
	obs.NavigationWarnings.WithLabelValues(source).Inc()
	t.log.Warn("navigation degraded", zap.String("source", source), zap.String("warning", msg))

	t.warnings = append(t.warnings, Warning{Source: source, Message: msg, At: t.now()})
	if len(t.warnings) > maxWarnings {
		t.warnings = t.warnings[len(t.warnings)-maxWarnings:]
	}
}
