package geo

import (
	"fmt"
	"math"
)

// KmPerDegree is the flat conversion used for radius searches. One degree of
// latitude is roughly 111km. Longitude uses the same factor without a
// cos(lat) correction, so boxes get narrower in real distance away from the
// equator. This is an approximation, not a great-circle distance.
const KmPerDegree = 111.0

// BoundingBox is an inclusive lat/lng rectangle.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// BoxAround returns the box extending radiusKm/111 degrees from the center in
// every direction.
func BoxAround(lat, lng, radiusKm float64) BoundingBox {
	d := radiusKm / KmPerDegree
	return BoundingBox{
		MinLat: lat - d,
		MaxLat: lat + d,
		MinLng: lng - d,
		MaxLng: lng + d,
	}
}

func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat &&
		lng >= b.MinLng && lng <= b.MaxLng
}

func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.MinLat, b.MaxLat, b.MinLng, b.MaxLng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bounding box has a non-finite coordinate")
		}
	}
	if b.MinLat > b.MaxLat {
		return fmt.Errorf("min_lat %v is greater than max_lat %v", b.MinLat, b.MaxLat)
	}
	if b.MinLng > b.MaxLng {
		return fmt.Errorf("min_lng %v is greater than max_lng %v", b.MinLng, b.MaxLng)
	}
	return nil
}

func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
