package traffic

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ToFeatureCollection renders segments as GeoJSON line strings with congestion and color properties.
func ToFeatureCollection(segments []Segment) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, s := range segments {
		line := make(orb.LineString, 0, len(s.Points))
		for _, p := range s.Points {
			line = append(line, orb.Point{p.Lng, p.Lat})
		}

		f := geojson.NewFeature(line)
		f.Properties["segment"] = i
		f.Properties["leg"] = s.LegIndex
		f.Properties["congestion"] = string(s.Level)
		f.Properties["color"] = s.Level.Color()
		fc.Append(f)
	}
	return fc
}
