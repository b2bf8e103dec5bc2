// Package geo provides great-circle distance math for geofence checks.
package geo

import "math"

// earthRadiusMeters is the mean Earth radius used for Haversine distance.
const earthRadiusMeters = 6371000.0

// Distance returns the Haversine great-circle distance in meters between two
// WGS84 points. Pure and total for finite inputs; coordinate range validation
// is the caller's job.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
