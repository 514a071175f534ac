package domain

import "time"

// Market is a farmers market as stored in the catalog.
// Zero Latitude/Longitude means the coordinate was never set.
type Market struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	ZipCode     string    `json:"zip_code,omitempty"`
	Hours       string    `json:"hours,omitempty"`
	IsOpen      bool      `json:"is_open"`
	OrganicOnly bool      `json:"organic_only"`
	AcceptsSNAP bool      `json:"accepts_snap"`
	AcceptsWIC  bool      `json:"accepts_wic"`
	PetFriendly bool      `json:"pet_friendly"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	IsFavorite  bool      `json:"is_favorite"`
	Distance    *float64  `json:"distance,omitempty"` // miles, computed field
	UpdatedAt   time.Time `json:"updated_at"`
}

// RawMarket is a listing as returned by the USDA Local Food Portal.
type RawMarket struct {
	ListingName     string   `json:"listing_name"`
	ListingDesc     string   `json:"listing_desc,omitempty"`
	State           string   `json:"location_state"`
	City            string   `json:"location_city"`
	ZipCode         string   `json:"location_zipcode"`
	Address         string   `json:"location_address,omitempty"`
	X               *float64 `json:"location_x,omitempty"` // longitude
	Y               *float64 `json:"location_y,omitempty"` // latitude
	ContactName     string   `json:"contact_name,omitempty"`
	ContactPhone    string   `json:"contact_phone,omitempty"`
	ContactEmail    string   `json:"contact_email,omitempty"`
	Website         string   `json:"media_website,omitempty"`
	OperationHours  string   `json:"operation_hours,omitempty"`
	OperationSeason string   `json:"operation_season,omitempty"`
}

// StateBox is an approximate bounding box of a US state.
type StateBox struct {
	MinLat, MaxLat, MinLon, MaxLon float64
}

// StateBoxes are used to decide which states a wide map region touches.
var StateBoxes = map[string]StateBox{
	"CA": {MinLat: 32.5, MaxLat: 42.0, MinLon: -124.5, MaxLon: -114.1},
	"NY": {MinLat: 40.5, MaxLat: 45.0, MinLon: -79.8, MaxLon: -71.8},
	"TX": {MinLat: 25.8, MaxLat: 36.5, MinLon: -106.6, MaxLon: -93.5},
	"FL": {MinLat: 24.4, MaxLat: 31.0, MinLon: -87.6, MaxLon: -80.0},
	"IL": {MinLat: 36.9, MaxLat: 42.5, MinLon: -91.5, MaxLon: -87.0},
}

// StateCenters are used when a USDA listing has no coordinates.
var StateCenters = map[string]Coordinate{
	"CA": {36.7783, -119.4179}, "TX": {31.9686, -99.9018}, "FL": {27.7663, -82.8001},
	"NY": {40.7589, -74.0060}, "PA": {41.2033, -77.1945}, "IL": {40.3363, -89.0022},
	"OH": {40.3888, -82.7649}, "GA": {33.7490, -84.3880}, "NC": {35.5951, -79.0193},
	"MI": {42.3314, -84.5467}, "NJ": {40.0583, -74.7429}, "VA": {37.7693, -78.1690},
	"WA": {47.0379, -120.5542}, "AZ": {33.7712, -111.3877}, "MA": {42.2373, -71.5314},
	"TN": {35.7796, -86.6892}, "IN": {39.8647, -86.2604}, "MO": {38.4623, -92.3020},
	"MD": {39.0550, -76.7909}, "WI": {44.2563, -89.6385}, "CO": {39.0598, -105.3111},
	"MN": {45.7326, -93.9196}, "SC": {33.8191, -80.8964}, "AL": {32.3617, -86.7911},
}

// USCenter is the fallback for listings in states without a known center.
var USCenter = Coordinate{Lat: 39.8283, Lon: -98.5795}
