// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"math"
	"time"
)

// ─── Location Types ─────────────────────────────────────────────────────────

// LocationSample is one raw GPS fix. It is an immutable value: every
// transformation (filtering, smoothing) yields a new instance, never a
// mutation of an existing one.
type LocationSample struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	CapturedAt     time.Time `json:"captured_at"`
}

// HasValidCoordinates reports whether both coordinates are present and finite.
// A missing coordinate must never be substituted with zero — (0,0) is a real
// place in the Gulf of Guinea.
func (s LocationSample) HasValidCoordinates() bool {
	return isFinite(s.Latitude) && isFinite(s.Longitude) &&
		s.Latitude >= -90 && s.Latitude <= 90 &&
		s.Longitude >= -180 && s.Longitude <= 180
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ─── Session Types ──────────────────────────────────────────────────────────

// SessionState is the lifecycle state of a tracked walk.
type SessionState string

const (
	StateIdle     SessionState = "IDLE"
	StateTracking SessionState = "TRACKING"
	StatePaused   SessionState = "PAUSED"
	StateStopped  SessionState = "STOPPED"
)

// MaxWindowSize bounds the smoother's rolling window of recent samples.
const MaxWindowSize = 5

// MaxAccuracyMeters is the hard accuracy ceiling: samples reporting a worse
// (larger) accuracy radius never enter a session's route.
const MaxAccuracyMeters = 100.0

// SessionSummary is the finalized record of one walk, produced at stop time.
// DurationSeconds is wall-clock seconds, not raw device time units.
type SessionSummary struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DistanceMeters  float64   `json:"distance_meters"`
	DurationSeconds int64     `json:"duration_seconds"`
	SampleCount     int       `json:"sample_count"`
	RejectedCount   int       `json:"rejected_count"`
}

// ─── Discovery Types ────────────────────────────────────────────────────────

// Source identifies which query path produced a discovery candidate.
type Source string

const (
	SourceRouteQuery Source = "route_query"
	SourceOnDemand   Source = "on_demand"
)

// DiscoveryCandidate is one point of interest returned by either query path.
// Treated as an immutable value through consolidation.
type DiscoveryCandidate struct {
	PlaceID     string   `json:"place_id"`
	DisplayName string   `json:"display_name"`
	Categories  []string `json:"categories,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	RatingCount int      `json:"rating_count,omitempty"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Address     string   `json:"address,omitempty"`
	Source      Source   `json:"source"`
}

// ConsolidatedDiscovery is the persisted output of consolidation: exactly one
// per unique place per session. Created once at consolidation time; afterwards
// mutated only by user save/dismiss actions, never re-created.
type ConsolidatedDiscovery struct {
	PlaceID            string    `json:"place_id"`
	SessionID          string    `json:"session_id"`
	UserID             string    `json:"user_id"`
	DisplayName        string    `json:"display_name"`
	Categories         []string  `json:"categories,omitempty"`
	Rating             float64   `json:"rating,omitempty"`
	RatingCount        int       `json:"rating_count,omitempty"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Address            string    `json:"address,omitempty"`
	Sources            []Source  `json:"sources"`
	OnDemandHitCount   int       `json:"on_demand_hit_count"`
	RouteQueryHitCount int       `json:"route_query_hit_count"`
	Saved              bool      `json:"saved"`
	Dismissed          bool      `json:"dismissed"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// HasSource reports whether the discovery was seen via the given query path.
func (d ConsolidatedDiscovery) HasSource(src Source) bool {
	for _, s := range d.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// SearchPreferences narrow a point-of-interest query.
type SearchPreferences struct {
	Categories []string `json:"categories,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}

// PingEligibility is the UI-facing answer to "can I ping right now?".
type PingEligibility struct {
	CanQuery          bool    `json:"can_query"`
	CooldownRemaining float64 `json:"cooldown_remaining_seconds"`
	CreditsRemaining  int     `json:"credits_remaining"`
}
