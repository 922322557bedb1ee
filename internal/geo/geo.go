// Package geo computes great-circle distances between GPS samples and event
// locations.
package geo

import "math"

// EarthRadiusKm is the mean radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// Point is a single latitude/longitude sample in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceKm returns the haversine distance between two points in kilometres.
// Inputs are not validated; NaN in gives NaN out.
func DistanceKm(latA, lonA, latB, lonB float64) float64 {
	dLat := toRadians(latB - latA)
	dLon := toRadians(lonB - lonA)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(latA))*math.Cos(toRadians(latB))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Distance is DistanceKm for two Points.
func Distance(a, b Point) float64 {
	return DistanceKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

// AnyWithin reports whether at least one sample of track lies within radiusKm
// of center. An empty track never matches.
func AnyWithin(track []Point, center Point, radiusKm float64) bool {
	for _, p := range track {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
			continue
		}
		if Distance(p, center) <= radiusKm {
			return true
		}
	}
	return false
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
