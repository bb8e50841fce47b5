package core

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

var (
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

// Location is a single position report from a driver
type Location struct {
	BusID     int64           `json:"busId"`
	Latitude  decimal.Decimal `json:"latitude"`
	Longitude decimal.Decimal `json:"longitude"`
}

// Validate checks the bus id and coordinate ranges
func (l Location) Validate() error {
	if l.BusID <= 0 {
		return Invalid("busId must be a positive integer.")
	}
	if l.Latitude.Abs().GreaterThan(maxLatitude) {
		return Invalid("latitude must be between -90 and 90.")
	}
	if l.Longitude.Abs().GreaterThan(maxLongitude) {
		return Invalid("longitude must be between -180 and 180.")
	}
	return nil
}

// BusLocation is the latest known position of a bus, as reported by the location service
type BusLocation struct {
	BusID      string          `json:"busId"`
	Latitude   decimal.Decimal `json:"latitude"`
	Longitude  decimal.Decimal `json:"longitude"`
	Timestamp  string          `json:"timestamp"`
	DriverName string          `json:"driverName"`
	BusName    string          `json:"busName"`
}

// Upstream is a raw response from a forwarded service
type Upstream struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// MarshalJSON writes coordinates as JSON numbers rather than decimal's default quoted strings
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BusID     int64       `json:"busId"`
		Latitude  json.Number `json:"latitude"`
		Longitude json.Number `json:"longitude"`
	}{l.BusID, json.Number(l.Latitude.String()), json.Number(l.Longitude.String())})
}

// UnmarshalJSON rejects reports without both coordinates; a missing field would
// otherwise decode as 0 and be stored as a real position
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw struct {
		BusID     int64               `json:"busId"`
		Latitude  decimal.NullDecimal `json:"latitude"`
		Longitude decimal.NullDecimal `json:"longitude"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Latitude.Valid || !raw.Longitude.Valid {
		return Invalid("latitude and longitude are required.")
	}

	*l = Location{BusID: raw.BusID, Latitude: raw.Latitude.Decimal, Longitude: raw.Longitude.Decimal}
	return nil
}

func (b BusLocation) MarshalJSON() ([]byte, error) {
	type plain BusLocation
	return json.Marshal(struct {
		plain
		Latitude  json.Number `json:"latitude"`
		Longitude json.Number `json:"longitude"`
	}{plain(b), json.Number(b.Latitude.String()), json.Number(b.Longitude.String())})
}
