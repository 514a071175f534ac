package geospatial

import "math"

// LngX projects a longitude onto the unit Web Mercator square, 0 at -180°.
func LngX(lng float64) float64 {
	return lng/360 + 0.5
}

// LatY projects a latitude onto the unit Web Mercator square, 0 at the top.
// Values past the Mercator limit are clamped to the square.
func LatY(lat float64) float64 {
	sin := math.Sin(toRad(lat))
	y := 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	if y < 0 {
		return 0
	}
	if y > 1 {
		return 1
	}
	return y
}

// XLng is the inverse of LngX.
func XLng(x float64) float64 {
	return (x - 0.5) * 360
}

// YLat is the inverse of LatY.
func YLat(y float64) float64 {
	y2 := (180 - y*360) * math.Pi / 180
	return 360*math.Atan(math.Exp(y2))/math.Pi - 90
}

// PixelRadius converts a radius in tile pixels to unit-square distance at a zoom.
func PixelRadius(radius, extent float64, zoom int) float64 {
	return radius / (extent * math.Pow(2, float64(zoom)))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
