package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
	"trip-route-service/internal/domain"
	"trip-route-service/internal/platform/obs"
	"trip-route-service/internal/ports"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// SharedLookupTimeout bounds a lookup shared by concurrent callers, which no longer
// follows the context of whichever caller started it.
const SharedLookupTimeout = 60 * time.Second

// CachedMatrixProvider serves matrix cells from a DistanceCache and fetches only the
// missing ones from the wrapped provider. Cache failures are logged and treated as
// misses; provider failures fail the call as they would without the cache.
type CachedMatrixProvider struct {
	inner ports.CostMatrixProvider
	cache ports.DistanceCache
	log   *zap.Logger
	group singleflight.Group

	timeout time.Duration
}

var _ ports.CostMatrixProvider = (*CachedMatrixProvider)(nil)

func NewCachedMatrixProvider(inner ports.CostMatrixProvider, cache ports.DistanceCache, log *zap.Logger) *CachedMatrixProvider {
	if log == nil {
		log = zap.L()
	}
	return &CachedMatrixProvider{
		inner:   inner,
		cache:   cache,
		log:     log.Named("distance_cache"),
		timeout: SharedLookupTimeout,
	}
}

// GetMatrix collapses concurrent identical requests into one lookup. A caller whose
// context ends stops waiting; the lookup keeps running for the others.
func (p *CachedMatrixProvider) GetMatrix(ctx context.Context, points []domain.LatLng, mode domain.TravelMode) (*ports.DistanceMatrix, error) {
	keys := make([]string, len(points))
	for i, pt := range points {
		keys[i] = ports.PairKey(pt, mode)
	}

	ch := p.group.DoChan(strings.Join(keys, ";"), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		return p.getMatrix(shared, points, keys, mode)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ports.DistanceMatrix), nil
	}
}

func (p *CachedMatrixProvider) getMatrix(ctx context.Context, points []domain.LatLng, keys []string, mode domain.TravelMode) (_ *ports.DistanceMatrix, err error) {
	defer obs.Time(ctx, "distance.cache.GetMatrix")(&err)

	n := len(points)
	rows := make([][]ports.DistanceResult, n)
	missing := make([][]int, n)
	misses := 0

	for i := range points {
		rows[i] = make([]ports.DistanceResult, n)
		rows[i][i] = ports.DistanceResult{Reachable: true}

		dests := make([]string, 0, n-1)
		for j := range points {
			if j != i {
				dests = append(dests, keys[j])
			}
		}

		hits, err := p.cache.GetMany(ctx, keys[i], dests)
		if err != nil {
			p.log.Warn("distance cache read failed", zap.String("origin", keys[i]), zap.Error(err))
			hits = nil
		}
		for j := range points {
			if j == i {
				continue
			}
			if r, ok := hits[keys[j]]; ok {
				rows[i][j] = r
				continue
			}
			missing[i] = append(missing[i], j)
		}
		misses += len(missing[i])
	}

	obs.DistanceCacheLookups.WithLabelValues("hit").Add(float64(n*(n-1) - misses))
	obs.DistanceCacheLookups.WithLabelValues("miss").Add(float64(misses))
	if misses == 0 {
		return &ports.DistanceMatrix{Rows: rows}, nil
	}

	rowProvider, ok := p.inner.(ports.CostRowProvider)
	if !ok || misses*2 > n*(n-1) {
		return p.fetchAll(ctx, points, keys, mode)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, js := range missing {
		if len(js) == 0 {
			continue
		}
		g.Go(func() error {
			dests := make([]domain.LatLng, len(js))
			for k, j := range js {
				dests[k] = points[j]
			}
			res, err := rowProvider.GetRow(gctx, points[i], dests, mode)
			if err != nil {
				return err
			}
			if len(res) != len(js) {
				return &domain.ProviderError{Provider: "matrix", Op: "get row", Err: fmt.Errorf("expected %d results, got %d", len(js), len(res))}
			}
			fetched := make(map[string]ports.DistanceResult, len(js))
			for k, j := range js {
				rows[i][j] = res[k]
				fetched[keys[j]] = res[k]
			}
			p.store(gctx, keys[i], fetched)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ports.DistanceMatrix{Rows: rows}, nil
}

// fetchAll replaces the whole matrix from the provider and refreshes the cache.
func (p *CachedMatrixProvider) fetchAll(ctx context.Context, points []domain.LatLng, keys []string, mode domain.TravelMode) (*ports.DistanceMatrix, error) {
	m, err := p.inner.GetMatrix(ctx, points, mode)
	if err != nil {
		return nil, err
	}
	if m.Size() != len(points) {
		// Let the estimator reject the shape.
		return m, nil
	}
	for i, row := range m.Rows {
		fetched := make(map[string]ports.DistanceResult, len(row))
		for j, r := range row {
			if j != i && j < len(keys) {
				fetched[keys[j]] = r
			}
		}
		p.store(ctx, keys[i], fetched)
	}
	return m, nil
}

func (p *CachedMatrixProvider) store(ctx context.Context, origin string, results map[string]ports.DistanceResult) {
	if err := p.cache.PutMany(ctx, origin, results); err != nil {
		p.log.Warn("distance cache write failed", zap.String("origin", origin), zap.Error(err))
	}
}
