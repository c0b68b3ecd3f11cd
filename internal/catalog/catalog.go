// Package catalog provides the station lists the player can choose from.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebovdev/radioplayer/internal/station"
	"github.com/rs/zerolog/log"
)

// ErrNoStations is returned when no provider yields a usable station.
var ErrNoStations = errors.New("no stations available")

// Provider yields station records.
type Provider interface {
	Stations(ctx context.Context) ([]station.Station, error)
}

// Static serves a fixed list, typically the stations declared in the config file.
type Static struct {
	list []station.Station
}

func NewStatic(stations []station.Station) *Static {
	cp := make([]station.Station, len(stations))
	copy(cp, stations)
	return &Static{list: cp}
}

func (s *Static) Stations(_ context.Context) ([]station.Station, error) {
	return filterValid(s.list), nil
}

// Fallback asks each provider in turn and returns the first non-empty list.
type Fallback struct {
	providers []Provider
}

func NewFallback(providers ...Provider) *Fallback {
	return &Fallback{providers: providers}
}

func (f *Fallback) Stations(ctx context.Context) ([]station.Station, error) {
	var errs []error
	for _, p := range f.providers {
		stations, err := p.Stations(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Station provider failed, trying next")
			errs = append(errs, err)
			continue
		}
		if len(stations) > 0 {
			return stations, nil
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoStations, errors.Join(errs...))
	}
	return nil, ErrNoStations
}

// Merge concatenates the lists of all providers, dropping later duplicates by ID.
// A provider error is logged and skipped.
func Merge(ctx context.Context, providers ...Provider) []station.Station {
	seen := make(map[string]bool)
	var result []station.Station
	for _, p := range providers {
		stations, err := p.Stations(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Station provider failed")
			continue
		}
		for _, st := range stations {
			if seen[st.ID] {
				continue
			}
			seen[st.ID] = true
			result = append(result, st)
		}
	}
	return result
}

// Merged is a Provider over Merge. It fails only when every provider comes up empty.
type Merged struct {
	providers []Provider
}

func NewMerged(providers ...Provider) *Merged {
	return &Merged{providers: providers}
}

func (m *Merged) Stations(ctx context.Context) ([]station.Station, error) {
	stations := Merge(ctx, m.providers...)
	if len(stations) == 0 {
		return nil, ErrNoStations
	}
	return stations, nil
}

func filterValid(stations []station.Station) []station.Station {
	result := make([]station.Station, 0, len(stations))
	for _, st := range stations {
		if err := st.Validate(); err != nil {
			log.Debug().Err(err).Str("station", st.ID).Msg("Skipping invalid station")
			continue
		}
		result = append(result, st)
	}
	return result
}
