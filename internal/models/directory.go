package models

// City and Street form the static pickup-point directory the bot can
// browse. Read-only data, seeded by migrations.
type City struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Street struct {
	ID     int64  `json:"id"`
	CityID int64  `json:"city_id"`
	Name   string `json:"name"`
}

// ServicePoint is a physical location on a street: opening hours,
// contact phone and a map link.
type ServicePoint struct {
	ID           int64  `json:"id"`
	StreetID     int64  `json:"street_id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	WeekdayHours string `json:"weekday_hours"`
	WeekendHours string `json:"weekend_hours"`
	Contact      string `json:"contact"`
	GeoLink      string `json:"geo_link"`
}

// ProductCategory and Product back the static catalog browse flow.
type ProductCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          int64   `json:"id"`
	CategoryID  int64   `json:"category_id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
}
