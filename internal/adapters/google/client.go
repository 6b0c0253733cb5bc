// Package google implements the cost matrix, directions and traffic route ports on top of
// the Google Maps Platform web services.
package google

import (
	"errors"
	"net/http"
	"time"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/platform/obs"
)

const (
	defaultMapsBaseURL   = "https://maps.googleapis.com"
	defaultRoutesBaseURL = "https://routes.googleapis.com"

	providerName = "google"
)

// Client talks to the Distance Matrix, Directions and Routes APIs.
//
// It performs no retries; callers decide whether a failed call is worth repeating.
// The client is safe for concurrent use.
type Client struct {
	session       *http.Client
	apiKey        string
	mapsBaseURL   string
	routesBaseURL string
	concurrency   int
	now           func() time.Time
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.session = c }
}

// WithBaseURLs overrides the API hosts, mainly for tests.
func WithBaseURLs(maps, routes string) Option {
	return func(cl *Client) {
		cl.mapsBaseURL = maps
		cl.routesBaseURL = routes
	}
}

// WithConcurrency bounds the number of matrix chunk requests in flight.
func WithConcurrency(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.concurrency = n
		}
	}
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("google maps api key is empty")
	}

	c := &Client{
		session:       &http.Client{Timeout: 20 * time.Second},
		apiKey:        apiKey,
		mapsBaseURL:   defaultMapsBaseURL,
		routesBaseURL: defaultRoutesBaseURL,
		concurrency:   4,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// fail records the failure and wraps it as a provider error.
func fail(op, status string, err error) error {
	obs.ProviderErrors.WithLabelValues(providerName, op).Inc()

	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	var he *httpStatusError
	if status == "" && errors.As(err, &he) {
		status = http.StatusText(he.Code)
	}
	return &domain.ProviderError{Provider: providerName, Op: op, Status: status, Err: err}
}

// Legacy web service mode names. Two-wheeler routing is only offered by the Routes API,
// so it falls back to driving here.
func legacyMode(m domain.TravelMode) string {
	switch m {
	case domain.TravelModeWalking:
		return "walking"
	case domain.TravelModeBicycling:
		return "bicycling"
	case domain.TravelModeTransit:
		return "transit"
	default:
		return "driving"
	}
}

func routesMode(m domain.TravelMode) string {
	switch m {
	case domain.TravelModeWalking:
		return "WALK"
	case domain.TravelModeBicycling:
		return "BICYCLE"
	case domain.TravelModeTwoWheeler:
		return "TWO_WHEELER"
	case domain.TravelModeTransit:
		return "TRANSIT"
	default:
		return "DRIVE"
	}
}
