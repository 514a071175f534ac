package usda

import (
	"math"
	"strings"

	"github.com/samirrijal/marketmap/internal/core/domain"
)

const milesPerDegree = 69.0

func coord(v float64) *float64 { return &v }

var samples = []domain.RawMarket{
	{
		ListingName: "Santa Monica Farmers Market", State: "CA", City: "Santa Monica", ZipCode: "90401",
		Address: "Arizona Ave & 2nd St", X: coord(-118.4965), Y: coord(34.0175),
		OperationHours: "Wed 8:00 AM - 1:00 PM; Sat 8:00 AM - 1:00 PM", Website: "https://www.smgov.net/portals/farmersmarket/",
	},
	{
		ListingName: "Ferry Plaza Farmers Market", State: "CA", City: "San Francisco", ZipCode: "94111",
		Address: "1 Ferry Building", X: coord(-122.3937), Y: coord(37.7955),
		OperationHours: "Tue, Thu 10:00 AM - 2:00 PM; Sat 8:00 AM - 2:00 PM", Website: "https://foodwise.org",
	},
	{
		ListingName: "Union Square Greenmarket", State: "NY", City: "New York", ZipCode: "10003",
		Address: "E 17th St & Union Square W", X: coord(-73.9903), Y: coord(40.7359),
		OperationHours: "Mon, Wed, Fri, Sat 8:00 AM - 6:00 PM", Website: "https://www.grownyc.org/greenmarket",
	},
	{
		ListingName: "Grand Army Plaza Greenmarket", State: "NY", City: "Brooklyn", ZipCode: "11238",
		Address: "Prospect Park W & Flatbush Ave", X: coord(-73.9690), Y: coord(40.6724),
		OperationHours: "Sat 8:00 AM - 3:00 PM", Website: "https://www.grownyc.org/greenmarket",
	},
	{
		ListingName: "Dallas Farmers Market", State: "TX", City: "Dallas", ZipCode: "75201",
		Address: "920 S Harwood St", X: coord(-96.7890), Y: coord(32.7767),
		OperationHours: "Fri-Sun 9:00 AM - 5:00 PM", Website: "https://dallasfarmersmarket.org",
	},
	{
		ListingName: "South Beach Farmers Market", State: "FL", City: "Miami Beach", ZipCode: "33139",
		Address: "Lincoln Rd & Meridian Ave", X: coord(-80.1340), Y: coord(25.7907),
		OperationHours: "Sun 9:00 AM - 6:30 PM",
	},
	{
		ListingName: "Green City Market", State: "IL", City: "Chicago", ZipCode: "60614",
		Address: "1817 N Clark St", X: coord(-87.6347), Y: coord(41.9146),
		OperationHours: "Wed, Sat 7:00 AM - 1:00 PM", Website: "https://greencitymarket.org",
	},
}

// SampleByState returns the built-in listings of a state.
func SampleByState(state string) []domain.RawMarket {
	state = strings.ToUpper(strings.TrimSpace(state))
	out := []domain.RawMarket{}
	for _, m := range samples {
		if m.State == state {
			out = append(out, m)
		}
	}
	return out
}

// SampleNear returns the built-in listings within radiusMiles of a point,
// using a flat 69 miles per degree.
func SampleNear(lat, lon, radiusMiles float64) []domain.RawMarket {
	out := []domain.RawMarket{}
	for _, m := range samples {
		dLat, dLon := *m.Y-lat, *m.X-lon
		if math.Sqrt(dLat*dLat+dLon*dLon)*milesPerDegree <= radiusMiles {
			out = append(out, m)
		}
	}
	return out
}
