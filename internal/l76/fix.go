// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package l76

import (
	"strconv"
	"time"

	"gitlab.com/sattrack/l76gnss/internal/nmea"
)

// noFixMode is the positioning mode letter receivers emit in RMC and GLL
// while no position is available.
const noFixMode = "N"

// FixState is the receiver's fix status as seen through the sentence stream.
// Only the most recent fix is kept.
type FixState struct {
	Fixed          bool
	Latitude       float64
	Longitude      float64
	HasPosition    bool
	TimeOfFix      time.Time
	TimeToFirstFix time.Duration
}

// fixTracker owns the FixState and applies transitions. Fix determination
// policy: only the GGA fix status and the RMC/GLL positioning mode are
// consulted. The GSA mode and VTG positioning mode fields are decoded and
// passed through, but never drive a transition.
type fixTracker struct {
	state   FixState
	started time.Time
}

func newFixTracker(now time.Time) fixTracker {
	return fixTracker{started: now}
}

// reset clears the fix and restarts the time-to-first-fix clock. This is the
// forced re-fix path.
func (t *fixTracker) reset(now time.Time) {
	t.state = FixState{}
	t.started = now
}

// apply feeds one decoded record through the transition logic and reports
// whether it changed the fixed flag. Records that qualify but indicate
// invalid positioning clear the fix, so the flag always reflects the most
// recently processed qualifying record.
func (t *fixTracker) apply(rec nmea.Record, now time.Time) bool {
	var valid bool
	var pos nmea.Position

	switch r := rec.(type) {
	case nmea.GGA:
		status, err := strconv.Atoi(r.FixStatus)
		valid = err == nil && status >= 1
		pos = r.Pos
	case nmea.RMC:
		valid = r.PosMode != "" && r.PosMode != noFixMode
		pos = r.Pos
	case nmea.GLL:
		valid = r.PosMode != "" && r.PosMode != noFixMode
		pos = r.Pos
	default:
		return false
	}

	if !valid {
		if !t.state.Fixed {
			return false
		}
		t.state.Fixed = false
		t.state.Latitude = 0
		t.state.Longitude = 0
		t.state.HasPosition = false
		t.state.TimeToFirstFix = 0
		return true
	}

	transitioned := !t.state.Fixed
	if transitioned {
		t.state.TimeToFirstFix = now.Sub(t.started)
	}
	t.state.Fixed = true
	t.state.TimeOfFix = now
	if pos.Valid {
		t.state.Latitude = pos.Latitude
		t.state.Longitude = pos.Longitude
		t.state.HasPosition = true
	}
	return transitioned
}
