package utils

import "math"

const earthRadiusKm = 6371.0

func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*
			math.Cos(degreesToRadians(lat1))*math.Cos(degreesToRadians(lat2))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}

// NearestIndex returns the index of the (lat,lon) pair in points closest to
// the given coordinates, or -1 when points is empty. Points are [lat, lon].
func NearestIndex(lat, lon float64, points [][2]float64) int {
	minIdx := -1
	minDist := 0.0
	for i := range points {
		d := HaversineKm(lat, lon, points[i][0], points[i][1])
		if minIdx == -1 || d < minDist {
			minDist = d
			minIdx = i
		}
	}
	return minIdx
}
