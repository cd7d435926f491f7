package domain

import (
	"context"
	"log/slog"
)

// ResolvePlace fills an empty Place from the geocoder. If geocoder is nil, the
// event already has a place, or the lookup fails, the event is returned
// unchanged.
func ResolvePlace(ctx context.Context, q Quake, geocoder Geocoder, logger *slog.Logger) Quake {
	if geocoder == nil || q.Place != "" {
		return q
	}
	if q.Latitude == 0 && q.Longitude == 0 {
		return q
	}

	result, err := geocoder.ReverseGeocode(ctx, q.Latitude, q.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"event_id", q.ID,
			"lat", q.Latitude,
			"lon", q.Longitude,
			"error", err,
		)
		return q
	}
	if result.FormattedAddress != "" {
		q.Place = result.FormattedAddress
	}
	return q
}
