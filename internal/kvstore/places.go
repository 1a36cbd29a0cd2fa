package kvstore

import (
	"context"
	"fmt"
	"strings"

	"transitpulse/internal/domain"
)

// Place is a saved location.
type Place struct {
	Name  string        `json:"name"`
	Label string        `json:"label,omitempty"`
	At    domain.LatLon `json:"at"`
}

// SavePlace stores home and work under their own keys and anything else in
// the custom list, replacing an entry with the same name.
func SavePlace(ctx context.Context, s Store, p Place) error {
	switch strings.ToLower(p.Name) {
	case "home":
		return SetJSON(ctx, s, KeyPlaceHome, p)
	case "work":
		return SetJSON(ctx, s, KeyPlaceWork, p)
	}

	var custom []Place
	if err := GetJSON(ctx, s, KeyPlacesCustom, &custom); err != nil && !IsAbsent(err) {
		return fmt.Errorf("loading custom places: %w", err)
	}

	replaced := false
	for i := range custom {
		if strings.EqualFold(custom[i].Name, p.Name) {
			custom[i] = p
			replaced = true
		}
	}
	if !replaced {
		custom = append(custom, p)
	}
	return SetJSON(ctx, s, KeyPlacesCustom, custom)
}

// LoadPlaces returns home, work, then custom places. Missing or corrupt entries are skipped.
func LoadPlaces(ctx context.Context, s Store) ([]Place, error) {
	var places []Place
	for _, key := range []string{KeyPlaceHome, KeyPlaceWork} {
		var p Place
		err := GetJSON(ctx, s, key, &p)
		if IsAbsent(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}

	var custom []Place
	err := GetJSON(ctx, s, KeyPlacesCustom, &custom)
	if err != nil && !IsAbsent(err) {
		return nil, err
	}
	return append(places, custom...), nil
}
