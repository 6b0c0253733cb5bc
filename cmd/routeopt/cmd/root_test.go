package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"trip-route-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const line = `[
	{"id": "c", "name": "C", "location": {"lat": 0, "lng": 0.02}},
	{"id": "a", "name": "A", "location": {"lat": 0, "lng": 0}},
	{"id": "b", "name": "B", "location": {"lat": 0, "lng": 0.01}}
]`

type output struct {
	OptimizedOrder     []int   `json:"optimized_order"`
	TotalDistanceKm    float64 `json:"total_distance_km"`
	OptimizedItinerary []struct {
		ID string `json:"id"`
	} `json:"optimized_itinerary"`
}

func defaults() options {
	return options{metric: string(domain.MetricHaversine), travelMode: "driving", tryAllStarts: true}
}

func TestRunBareArray(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), strings.NewReader(line), &out, defaults(), nil))

	var res output
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.Len(t, res.OptimizedItinerary, 3)
	assert.Equal(t, "b", res.OptimizedItinerary[1].ID)
	assert.InDelta(t, 2.2239, res.TotalDistanceKm, 0.001)
}

func TestRunRequestObjectWithStart(t *testing.T) {
	o := defaults()
	o.start = "0, -0.01"

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), strings.NewReader(`{"itinerary": `+line+`}`), &out, o, nil))

	var res output
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.Len(t, res.OptimizedItinerary, 4)
	assert.Equal(t, domain.StartStopID, res.OptimizedItinerary[0].ID)
	assert.Equal(t, "a", res.OptimizedItinerary[1].ID)
	// Indices point into the input array; the start has none.
	assert.Equal(t, []int{-1, 1, 2, 0}, res.OptimizedOrder)
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  func(*options)
	}{
		{"not json", `stops`, nil},
		{"no itinerary", `{"return_to_start": true}`, nil},
		{"bad start", line, func(o *options) { o.start = "north" }},
		{"start out of range", line, func(o *options) { o.start = "100,0" }},
		{"external without provider", line, func(o *options) { o.metric = "external" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaults()
			if tt.opts != nil {
				tt.opts(&o)
			}
			var out bytes.Buffer
			assert.Error(t, run(context.Background(), strings.NewReader(tt.input), &out, o, nil))
			assert.Zero(t, out.Len())
		})
	}
}
