package handlers

import (
	"context"
	"errors"
	"sync"
	"trip-route-service/internal/adapters/position"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/itinerary"
	"trip-route-service/internal/navigation"
	"trip-route-service/internal/ports"
	"trip-route-service/internal/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is the server-side state for one traveler: the editable itinerary, the
// position feed the client pushes into and the navigation tracker reading it.
type Session struct {
	ID        string
	Itinerary *itinerary.Itinerary
	Feed      *position.Feed
	Tracker   *navigation.Tracker

	mu   sync.Mutex
	opts itinerary.Options

	// nav orders every change to the tracker's route; applied is the newest plan version it saw.
	nav     sync.Mutex
	applied uint64
}

func (s *Session) setOptions(o itinerary.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = o
}

// retarget records the options of a freshly committed plan and points an active tracker
// at it. A plan older than one already applied gets itinerary.ErrStaleResult and changes
// nothing, so a slow optimize call cannot replace the route of a newer one.
func (s *Session) retarget(ctx context.Context, plan *itinerary.Plan, opts itinerary.Options) error {
	s.nav.Lock()
	defer s.nav.Unlock()
	if plan.Version < s.applied {
		return itinerary.ErrStaleResult
	}
	s.applied = plan.Version
	s.setOptions(opts)

	err := s.Tracker.SetRoute(ctx, routeFromPlan(plan, opts.TravelMode))
	if errors.Is(err, navigation.ErrNotActive) {
		return nil
	}
	return err
}

// startNavigation starts the tracker on the current plan.
func (s *Session) startNavigation(ctx context.Context) error {
	s.nav.Lock()
	defer s.nav.Unlock()
	route, ok := s.route()
	if !ok {
		return errNoPlan
	}
	return s.Tracker.Start(ctx, route)
}

// route builds the navigation route from the current plan, or reports false when
// the itinerary has no plan yet.
func (s *Session) route() (navigation.Route, bool) {
	plan := s.Itinerary.Plan()
	if plan == nil {
		return navigation.Route{}, false
	}
	s.mu.Lock()
	mode := s.opts.TravelMode
	s.mu.Unlock()
	return routeFromPlan(plan, mode), true
}

func routeFromPlan(plan *itinerary.Plan, mode domain.TravelMode) navigation.Route {
	return navigation.Route{
		Order:         services.Stops(plan.Stops),
		ReturnToStart: plan.Result.ReturnToStart,
		TravelMode:    mode,
	}
}

func (s *Session) close() {
	_ = s.Tracker.Stop()
	s.Itinerary.Close()
	s.Feed.Close()
}

// Sessions is the in-memory registry of itinerary sessions.
type Sessions struct {
	mu       sync.RWMutex
	byID     map[string]*Session
	optimize itinerary.OptimizeFunc
	nav      navigation.Config
	dirs     ports.DirectionsProvider
	traffic  ports.TrafficRouteProvider
	log      *zap.Logger
}

func NewSessions(
	optimize itinerary.OptimizeFunc,
	nav navigation.Config,
	dirs ports.DirectionsProvider,
	traffic ports.TrafficRouteProvider,
	log *zap.Logger,
) *Sessions {
	if log == nil {
		log = zap.L()
	}
	return &Sessions{
		byID:     make(map[string]*Session),
		optimize: optimize,
		nav:      nav,
		dirs:     dirs,
		traffic:  traffic,
		log:      log,
	}
}

// Create registers a session seeded with stops. Nothing is registered when a stop is rejected.
func (ss *Sessions) Create(stops []domain.Stop) (*Session, error) {
	it := itinerary.New(ss.optimize)
	for _, s := range stops {
		if err := it.Add(s); err != nil {
			it.Close()
			return nil, err
		}
	}

	id := uuid.NewString()
	feed := position.NewFeed()
	s := &Session{
		ID:        id,
		Itinerary: it,
		Feed:      feed,
		Tracker: navigation.New(ss.nav, navigation.Deps{
			Positions:  feed,
			Directions: ss.dirs,
			Traffic:    ss.traffic,
			Logger:     ss.log.With(zap.String("itinerary_id", id)),
		}),
		opts: itinerary.Options{TravelMode: domain.TravelModeDriving},
	}

	ss.mu.Lock()
	ss.byID[id] = s
	ss.mu.Unlock()
	return s, nil
}

func (ss *Sessions) Get(id string) (*Session, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s, ok := ss.byID[id]
	if !ok {
		return nil, errUnknownSession
	}
	return s, nil
}

// Delete stops navigation and discards the session.
func (ss *Sessions) Delete(id string) error {
	ss.mu.Lock()
	s, ok := ss.byID[id]
	delete(ss.byID, id)
	ss.mu.Unlock()
	if !ok {
		return errUnknownSession
	}
	s.close()
	return nil
}

// Close tears down every session; used on server shutdown.
func (ss *Sessions) Close() {
	ss.mu.Lock()
	all := ss.byID
	ss.byID = make(map[string]*Session)
	ss.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}

func (ss *Sessions) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.byID)
}
