package google

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/platform/obs"
	"trip-route-service/internal/ports"

	"golang.org/x/sync/errgroup"
)

// Distance Matrix request limits.
const (
	maxMatrixSide     = 25
	maxMatrixElements = 100
)

type matrixValue struct {
	Value float64 `json:"value"`
}

type matrixElement struct {
	Status            string       `json:"status"`
	Distance          matrixValue  `json:"distance"`
	Duration          matrixValue  `json:"duration"`
	DurationInTraffic *matrixValue `json:"duration_in_traffic"`
}

type matrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []matrixElement `json:"elements"`
	} `json:"rows"`
}

var (
	_ ports.CostMatrixProvider = (*Client)(nil)
	_ ports.CostRowProvider    = (*Client)(nil)
)

// GetMatrix fetches the full directed matrix between points, split into request-sized
// blocks fetched concurrently. Any failed block fails the whole matrix.
func (c *Client) GetMatrix(ctx context.Context, points []domain.LatLng, mode domain.TravelMode) (_ *ports.DistanceMatrix, err error) {
	defer obs.Time(ctx, "google.GetMatrix")(&err)

	n := len(points)
	rows := make([][]ports.DistanceResult, n)
	for i := range rows {
		rows[i] = make([]ports.DistanceResult, n)
		rows[i][i] = ports.DistanceResult{Reachable: true}
	}
	if n < 2 {
		return &ports.DistanceMatrix{Rows: rows}, nil
	}

	destBlock := min(n, maxMatrixSide)
	originBlock := max(1, min(maxMatrixSide, maxMatrixElements/destBlock))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for oi := 0; oi < n; oi += originBlock {
		oj := min(oi+originBlock, n)
		for di := 0; di < n; di += destBlock {
			dj := min(di+destBlock, n)
			g.Go(func() error {
				block, err := c.fetchMatrix(gctx, points[oi:oj], points[di:dj], mode)
				if err != nil {
					return err
				}
				// Blocks cover disjoint cells.
				for r, row := range block {
					for col, res := range row {
						if oi+r != di+col {
							rows[oi+r][di+col] = res
						}
					}
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ports.DistanceMatrix{Rows: rows}, nil
}

// GetRow fetches one origin against many destinations.
func (c *Client) GetRow(ctx context.Context, origin domain.LatLng, destinations []domain.LatLng, mode domain.TravelMode) (_ []ports.DistanceResult, err error) {
	defer obs.Time(ctx, "google.GetRow")(&err)

	out := make([]ports.DistanceResult, len(destinations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for di := 0; di < len(destinations); di += maxMatrixSide {
		dj := min(di+maxMatrixSide, len(destinations))
		g.Go(func() error {
			block, err := c.fetchMatrix(gctx, []domain.LatLng{origin}, destinations[di:dj], mode)
			if err != nil {
				return err
			}
			copy(out[di:dj], block[0])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fetchMatrix performs one Distance Matrix request. Elements with a non-OK status are
// returned as unreachable; a non-OK top-level status is an error.
func (c *Client) fetchMatrix(
	ctx context.Context,
	origins []domain.LatLng,
	destinations []domain.LatLng,
	mode domain.TravelMode,
) ([][]ports.DistanceResult, error) {
	const op = "distance matrix"

	params := url.Values{}
	params.Set("origins", joinPoints(origins))
	params.Set("destinations", joinPoints(destinations))
	params.Set("mode", legacyMode(mode))
	params.Set("units", "metric")
	params.Set("departure_time", "now")
	if mode.TrafficAware() {
		params.Set("traffic_model", "best_guess")
	}
	params.Set("key", c.apiKey)

	endpoint := c.mapsBaseURL + "/maps/api/distancematrix/json?" + params.Encode()

	var mr matrixResponse
	if err := c.getJSON(ctx, endpoint, &mr); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fail(op, "", fmt.Errorf("matrix request failed: %w", err))
	}
	if mr.Status != "OK" {
		return nil, fail(op, mr.Status, statusError(mr.ErrorMessage))
	}

	if len(mr.Rows) != len(origins) {
		return nil, fail(op, "", fmt.Errorf("expected %d rows, got %d", len(origins), len(mr.Rows)))
	}

	out := make([][]ports.DistanceResult, len(origins))
	for i, row := range mr.Rows {
		if len(row.Elements) != len(destinations) {
			return nil, fail(op, "", fmt.Errorf("row %d has %d elements, want %d", i, len(row.Elements), len(destinations)))
		}
		out[i] = make([]ports.DistanceResult, len(destinations))
		for j, el := range row.Elements {
			if el.Status != "OK" {
				continue
			}
			inTraffic := el.Duration.Value
			if el.DurationInTraffic != nil {
				inTraffic = el.DurationInTraffic.Value
			}
			out[i][j] = ports.DistanceResult{
				DistanceMeters:           el.Distance.Value,
				DurationSeconds:          el.Duration.Value,
				DurationInTrafficSeconds: inTraffic,
				Reachable:                true,
			}
		}
	}
	return out, nil
}

func joinPoints(points []domain.LatLng) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = pointParam(p)
	}
	return strings.Join(parts, "|")
}

// pointParam formats "lat,lng" without exponent notation.
func pointParam(p domain.LatLng) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

func statusError(message string) error {
	if message == "" {
		return errors.New("request not OK")
	}
	if strings.Contains(strings.ToLower(message), "referer") {
		message += " (the API key appears to be restricted to HTTP referrers; use a server key)"
	}
	return errors.New(message)
}
