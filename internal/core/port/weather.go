package port

import (
	"context"
	"encoding/json"
)

// WeatherReport bundles the upstream current conditions and forecast documents unchanged.
type WeatherReport struct {
	Current  json.RawMessage
	Forecast json.RawMessage
}

// WeatherProvider looks up weather data for a city.
type WeatherProvider interface {
	Lookup(ctx context.Context, city string) (*WeatherReport, error)
}
