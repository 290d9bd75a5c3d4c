package geo

import (
	"fmt"
	"math"
)

const earthRadiusM = 6371000.0

// DistanceM is the great-circle distance between two WGS84 points in meters.
func DistanceM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

func KmhFromMPS(mps float64) float64 {
	return mps * 3.6
}

func MPSFromKmh(kmh float64) float64 {
	return kmh / 3.6
}

// Offset moves a point north and east by the given meters. Good enough for
// the short distances used by fixtures and replays.
func Offset(lat, lon, northM, eastM float64) (float64, float64) {
	dLat := northM / earthRadiusM * 180 / math.Pi
	dLon := eastM / (earthRadiusM * math.Cos(lat*math.Pi/180)) * 180 / math.Pi
	return lat + dLat, lon + dLon
}

// FormatDistance renders meters for humans: "850 m", "12.4 km".
func FormatDistance(m float64) string {
	switch {
	case math.IsNaN(m) || math.IsInf(m, 0):
		return "unknown"
	case m < 1000:
		return fmt.Sprintf("%.0f m", m)
	default:
		return fmt.Sprintf("%.1f km", m/1000)
	}
}
