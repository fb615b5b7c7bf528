package domain

import (
	"fmt"
	"strings"
)

// Scope selects which hotels a run considers: exactly one of city code,
// geocode+radius, or an explicit hotel-ID list. A zero scope yields an
// empty catalog, not an error.
type Scope struct {
	CityCode string
	Geo      *GeoCode
	RadiusKM int
	HotelIDs []string
}

func (s Scope) IsZero() bool {
	return s.CityCode == "" && s.Geo == nil && len(s.HotelIDs) == 0
}

// CacheKey is a stable identifier for the scope, suitable as a cache key
// suffix.
func (s Scope) CacheKey() string {
	switch {
	case s.CityCode != "":
		return "city:" + s.CityCode
	case s.Geo != nil:
		return fmt.Sprintf("geo:%.4f,%.4f,r%d", s.Geo.Latitude, s.Geo.Longitude, s.RadiusKM)
	case len(s.HotelIDs) > 0:
		return "ids:" + strings.Join(s.HotelIDs, ",")
	}
	return "none"
}

func (s Scope) String() string { return s.CacheKey() }

// SearchParams are the stay parameters an offer search runs with.
type SearchParams struct {
	CheckIn  string // YYYY-MM-DD
	CheckOut string // YYYY-MM-DD
	Adults   int
	Rooms    int
}
