package usecases

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/samirrijal/marketmap/internal/core/domain"
)

// HoursUnavailable is shown for listings without operating hours.
const HoursUnavailable = "Hours not available"

var whitespace = regexp.MustCompile(`\s+`)

// ConvertRawMarket maps a directory listing to a Market. index is the
// listing's position in its response and makes the ID stable across syncs.
// Missing coordinates fall back to the center of the listing's state.
func ConvertRawMarket(raw domain.RawMarket, index int, now time.Time) domain.Market {
	state := strings.ToUpper(strings.TrimSpace(raw.State))

	center, ok := domain.StateCenters[state]
	if !ok {
		center = domain.USCenter
	}
	lat, lon := center.Lat, center.Lon
	if raw.Y != nil && *raw.Y != 0 {
		lat = *raw.Y
	}
	if raw.X != nil && *raw.X != 0 {
		lon = *raw.X
	}

	address := raw.Address
	if address == "" {
		address = fmt.Sprintf("%s, %s %s", raw.City, raw.State, raw.ZipCode)
	}
	hours := raw.OperationHours
	if hours == "" {
		hours = HoursUnavailable
	}

	return domain.Market{
		ID:        fmt.Sprintf("usda_%s_%s_%d_%s", raw.State, raw.ZipCode, index, whitespace.ReplaceAllString(raw.ListingName, "_")),
		Name:      raw.ListingName,
		Latitude:  lat,
		Longitude: lon,
		Address:   address,
		City:      raw.City,
		State:     state,
		ZipCode:   raw.ZipCode,
		Hours:     hours,
		IsOpen:    isWeekend(now),
		Phone:     raw.ContactPhone,
		Website:   raw.Website,
		UpdatedAt: now.UTC(),
	}
}

// ConvertRawMarkets converts a whole directory response.
func ConvertRawMarkets(raws []domain.RawMarket, now time.Time) []domain.Market {
	out := make([]domain.Market, len(raws))
	for i, r := range raws {
		out[i] = ConvertRawMarket(r, i, now)
	}
	return out
}

// Listings carry free-text hours only; markets are assumed open on weekends.
func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
