package ports

import (
	"context"
	"trip-route-service/internal/domain"
)

// One emission from a position source: either a sample or a sensor error.
type PositionUpdate struct {
	Position domain.Position
	Err      *domain.PositionError
}

// Live position source consumed only by the navigation tracker.
//
// Subscribe returns a channel of updates that is closed when ctx is done or the
// returned cancel func is called. Sources deliver the latest value only; slow
// consumers see dropped intermediate samples, never a queue.
type PositionSource interface {
	Subscribe(ctx context.Context) (<-chan PositionUpdate, func(), error)
}
