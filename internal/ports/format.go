package ports

import (
	"math"
	"strconv"
)

func formatCoord(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e5)/1e5, 'f', 5, 64)
}
