package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mjasion/balena-home/climate/pkg/types"
)

type zoneRef struct {
	homeID int64
	tadoID int64
}

type deviceRef struct {
	homeID int64
	serial string
}

// Memory is a concurrency-safe in-memory Store keyed by the same natural keys as Postgres
type Memory struct {
	mu sync.RWMutex

	nextID  int64
	homes   map[int64]int64
	zones   map[zoneRef]int64
	devices map[deviceRef]int64

	climate map[types.ClimateKey]*types.ClimateMeasurement
	weather map[types.WeatherKey]*types.WeatherMeasurement
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store
func NewMemory() *Memory {
	return &Memory{
		homes:   make(map[int64]int64),
		zones:   make(map[zoneRef]int64),
		devices: make(map[deviceRef]int64),
		climate: make(map[types.ClimateKey]*types.ClimateMeasurement),
		weather: make(map[types.WeatherKey]*types.WeatherMeasurement),
	}
}

func (s *Memory) Close() {}

// EnsureHome registers a home and returns its row id, reusing an existing one
func (s *Memory) EnsureHome(tadoHomeID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.homes[tadoHomeID]; ok {
		return id
	}
	s.nextID++
	s.homes[tadoHomeID] = s.nextID
	return s.nextID
}

// EnsureZone registers a zone of a home row and returns its row id
func (s *Memory) EnsureZone(homeID, tadoZoneID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := zoneRef{homeID: homeID, tadoID: tadoZoneID}
	if id, ok := s.zones[ref]; ok {
		return id
	}
	s.nextID++
	s.zones[ref] = s.nextID
	return s.nextID
}

// EnsureDevice registers a device of a home row by serial number and returns its row id
func (s *Memory) EnsureDevice(homeID int64, serial string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := deviceRef{homeID: homeID, serial: serial}
	if id, ok := s.devices[ref]; ok {
		return id
	}
	s.nextID++
	s.devices[ref] = s.nextID
	return s.nextID
}

func (s *Memory) HomeID(_ context.Context, tadoHomeID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.homes[tadoHomeID]
	if !ok {
		return 0, fmt.Errorf("home %d: %w", tadoHomeID, ErrNotFound)
	}
	return id, nil
}

func (s *Memory) ZoneIDs(_ context.Context, homeID int64) (map[int64]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[int64]int64)
	for ref, id := range s.zones {
		if ref.homeID == homeID {
			ids[ref.tadoID] = id
		}
	}
	return ids, nil
}

func (s *Memory) DeviceIDs(_ context.Context, homeID int64) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]int64)
	for ref, id := range s.devices {
		if ref.homeID == homeID {
			ids[ref.serial] = id
		}
	}
	return ids, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (s *Memory) HistoricalClimateTimes(_ context.Context, homeID, zoneID int64, from, to time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var times []time.Time
	for _, m := range s.climate {
		if m.HomeID != homeID || m.ZoneID == nil || *m.ZoneID != zoneID || m.Source != types.SourceHistorical {
			continue
		}
		if inRange(m.Time, from, to) {
			times = append(times, m.Time)
		}
	}
	slices.SortFunc(times, time.Time.Compare)
	return times, nil
}

func (s *Memory) HistoricalWeatherTimes(_ context.Context, homeID int64, from, to time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var times []time.Time
	for _, m := range s.weather {
		if m.HomeID != homeID || m.Source != types.SourceHistorical {
			continue
		}
		if inRange(m.Time, from, to) {
			times = append(times, m.Time)
		}
	}
	slices.SortFunc(times, time.Time.Compare)
	return times, nil
}

func (s *Memory) InsertClimate(_ context.Context, rows []*types.ClimateMeasurement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted int64
	for _, m := range rows {
		key := m.Key()
		if _, ok := s.climate[key]; ok {
			continue
		}
		row := *m
		s.climate[key] = &row
		inserted++
	}
	return inserted, nil
}

func (s *Memory) InsertWeather(_ context.Context, rows []*types.WeatherMeasurement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted int64
	for _, m := range rows {
		key := m.Key()
		if _, ok := s.weather[key]; ok {
			continue
		}
		row := *m
		s.weather[key] = &row
		inserted++
	}
	return inserted, nil
}

// ClimateRows returns a copy of every climate row ordered by time
func (s *Memory) ClimateRows() []types.ClimateMeasurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ClimateMeasurement, 0, len(s.climate))
	for _, m := range s.climate {
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b types.ClimateMeasurement) int {
		return cmp.Or(a.Time.Compare(b.Time), cmp.Compare(a.Key().ZoneID, b.Key().ZoneID), cmp.Compare(a.Key().DeviceID, b.Key().DeviceID))
	})
	return out
}

// WeatherRows returns a copy of every weather row ordered by time
func (s *Memory) WeatherRows() []types.WeatherMeasurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.WeatherMeasurement, 0, len(s.weather))
	for _, m := range s.weather {
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b types.WeatherMeasurement) int {
		return cmp.Or(a.Time.Compare(b.Time), cmp.Compare(a.Source, b.Source))
	})
	return out
}
