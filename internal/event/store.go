// Package event holds the tracked-object history that the search tool
// queries. The in-memory store backs the demo binary and tests; a real
// deployment feeds the same interface from the recording pipeline.
package event

import (
	"sort"
	"strings"
	"sync"
)

// Event is one finished tracked-object record.
type Event struct {
	ID        string   `json:"id"`
	Camera    string   `json:"camera"`
	Label     string   `json:"label"`
	SubLabel  string   `json:"sub_label,omitempty"`
	Zones     []string `json:"zones,omitempty"`
	StartTime float64  `json:"start_time"`
	EndTime   float64  `json:"end_time,omitempty"`
	TopScore  float64  `json:"top_score,omitempty"`
}

// SearchFilters narrows a history query. The string fields treat "all"
// (or empty) as unrestricted; After and Before are unix seconds with zero
// meaning an open bound; Zones is a comma-joined list matched as any-of.
type SearchFilters struct {
	Camera   string
	Label    string
	SubLabel string
	Zones    string
	After    float64
	Before   float64
	Limit    int
}

// Store is the query surface exposed to the chat tools. allowedCameras
// nil means no restriction.
type Store interface {
	Search(filters SearchFilters, allowedCameras []string) []Event
}

// MemoryStore keeps events in memory, newest first.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Add(events ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

func unrestricted(value string) bool {
	return value == "" || strings.EqualFold(value, "all")
}

func (s *MemoryStore) Search(filters SearchFilters, allowedCameras []string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var allowed map[string]bool
	if allowedCameras != nil {
		allowed = make(map[string]bool, len(allowedCameras))
		for _, camera := range allowedCameras {
			allowed[camera] = true
		}
	}

	var zones []string
	if !unrestricted(filters.Zones) {
		for _, zone := range strings.Split(filters.Zones, ",") {
			if zone = strings.TrimSpace(zone); zone != "" {
				zones = append(zones, zone)
			}
		}
	}

	var results []Event
	for _, event := range s.events {
		if allowed != nil && !allowed[event.Camera] {
			continue
		}
		if !unrestricted(filters.Camera) && event.Camera != filters.Camera {
			continue
		}
		if !unrestricted(filters.Label) && event.Label != filters.Label {
			continue
		}
		if !unrestricted(filters.SubLabel) && !strings.EqualFold(event.SubLabel, filters.SubLabel) {
			continue
		}
		if len(zones) > 0 && !matchesAnyZone(event.Zones, zones) {
			continue
		}
		if filters.After > 0 && event.StartTime < filters.After {
			continue
		}
		if filters.Before > 0 && event.StartTime > filters.Before {
			continue
		}
		results = append(results, event)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].StartTime > results[j].StartTime
	})

	if filters.Limit > 0 && len(results) > filters.Limit {
		results = results[:filters.Limit]
	}
	return results
}

func matchesAnyZone(eventZones, wanted []string) bool {
	for _, zone := range eventZones {
		for _, want := range wanted {
			if zone == want {
				return true
			}
		}
	}
	return false
}
