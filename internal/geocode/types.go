// Package geocode resolves (region, suburb) pairs to coordinates through the
// OpenCage geocoding API.
package geocode

import "errors"

var (
	// ErrNotFound means the geocoder had no result for the query.
	ErrNotFound = errors.New("location not found")
	// ErrUnavailable means the geocoder could not be reached or failed.
	ErrUnavailable = errors.New("geocoding service unavailable")
)

// response is the subset of the OpenCage payload the client reads.
type response struct {
	Results []struct {
		Geometry struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
		Confidence int `json:"confidence"`
	} `json:"results"`
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}
