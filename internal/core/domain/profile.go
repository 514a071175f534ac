package domain

import "time"

// RenderBudget is the maximum number of markers per zoom band.
// A non-positive value disables the cap for that band.
type RenderBudget struct {
	Low    int `json:"low" mapstructure:"low"`
	Medium int `json:"medium" mapstructure:"medium"`
	High   int `json:"high" mapstructure:"high"`
}

// PerformanceProfile holds the tuning for one platform class. It is chosen
// once at startup and passed into every clustering call.
type PerformanceProfile struct {
	Name              string        `json:"name"`
	Radius            float64       `json:"radius"`    // cluster radius in pixels
	Extent            float64       `json:"extent"`    // tile extent the radius is measured in
	NodeSize          int           `json:"node_size"` // leaf bucket size of the index tree
	MinPoints         int           `json:"min_points"`
	MinZoom           int           `json:"min_zoom"`
	MaxZoom           int           `json:"max_zoom"`
	Budgets           RenderBudget  `json:"budgets"`
	Debounce          time.Duration `json:"debounce"`
	FallbackSpan      float64       `json:"fallback_span"` // lonSpan below which the degenerate-result fallback may fire
	DisableClustering bool          `json:"disable_clustering"`
}

// MaxMarkersAtZoom returns the render budget for a band.
func (p PerformanceProfile) MaxMarkersAtZoom(band ZoomBand) int {
	switch band {
	case BandLow:
		return p.Budgets.Low
	case BandMedium:
		return p.Budgets.Medium
	default:
		return p.Budgets.High
	}
}

// DefaultProfile returns the baseline tuning: radius 40 px on a 512 px
// extent, 64-point leaves, zoom 1 to 20.
func DefaultProfile(name string) PerformanceProfile {
	return PerformanceProfile{
		Name:         name,
		Radius:       40,
		Extent:       512,
		NodeSize:     64,
		MinPoints:    2,
		MinZoom:      MinZoom,
		MaxZoom:      MaxZoom,
		Budgets:      RenderBudget{Low: 200, Medium: 300, High: 500},
		Debounce:     150 * time.Millisecond,
		FallbackSpan: 0.01,
	}
}
