// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package l76

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/sattrack/l76gnss/internal/nmea"
)

func decodeT(t *testing.T, payload string) nmea.Record {
	t.Helper()
	rec, err := nmea.Decode(nmea.Sentence{Type: payload}.String(), nmea.VersionLegacy)
	require.NoError(t, err, payload)
	return rec
}

func TestFixTrackerTransitions(t *testing.T) {
	start := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	fixAt := start.Add(37 * time.Second)

	tracker := newFixTracker(start)
	assert.False(t, tracker.state.Fixed)

	// non-qualifying records never transition
	for _, payload := range []string{
		"GPVTG,084.4,T,,M,022.4,N,041.5,K,A",
		"GPGSV,3,1,11,09,78,272,45",
		"GNGSA,A,3,09,06,17,19,,,,,,,,,1.7,1.0,1.3",
	} {
		changed := tracker.apply(decodeT(t, payload), fixAt)
		assert.False(t, changed, payload)
		assert.False(t, tracker.state.Fixed, payload)
	}

	// GGA with fix status >= 1 transitions and records the position
	changed := tracker.apply(decodeT(t, "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"), fixAt)
	require.True(t, changed)
	require.True(t, tracker.state.Fixed)
	assert.True(t, tracker.state.HasPosition)
	assert.InDelta(t, 48.1173, tracker.state.Latitude, 1e-4)
	assert.InDelta(t, 11.5167, tracker.state.Longitude, 1e-4)
	assert.Equal(t, fixAt, tracker.state.TimeOfFix)
	assert.Equal(t, 37*time.Second, tracker.state.TimeToFirstFix)

	// already fixed: another valid record refreshes but does not transition
	changed = tracker.apply(decodeT(t, "GPRMC,123520,A,4807.038,N,01131.000,E,022.4,084.4,230394,,,A"), fixAt.Add(time.Second))
	assert.False(t, changed)
	assert.True(t, tracker.state.Fixed)
	assert.Equal(t, fixAt.Add(time.Second), tracker.state.TimeOfFix)

	// a qualifying record indicating no fix clears the state
	changed = tracker.apply(decodeT(t, "GPGLL,,,,,123521,V,N"), fixAt.Add(2*time.Second))
	assert.True(t, changed)
	assert.False(t, tracker.state.Fixed)
	assert.False(t, tracker.state.HasPosition)
	assert.Zero(t, tracker.state.TimeToFirstFix)
}

func TestFixTrackerQualifyingKinds(t *testing.T) {
	start := time.Now()
	tables := []struct {
		payload string
		fixed   bool
	}{
		{"GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,", true},
		{"GPGGA,123519,4807.038,N,01131.000,E,2,08,0.9,545.4,M,46.9,M,,", true},
		{"GPGGA,123519,,,,,0,00,99.0,,M,,M,,", false},
		{"GPGGA,123519,,,,,bogus,00,99.0,,M,,M,,", false},
		{"GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,,,A", true},
		{"GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,,,D", true},
		{"GPRMC,123519,V,,,,,,,230394,,,N", false},
		{"GPGLL,4807.038,N,01131.000,E,123519,A,A", true},
		{"GPGLL,,,,,123519,V,N", false},
	}

	for _, table := range tables {
		tracker := newFixTracker(start)
		tracker.apply(decodeT(t, table.payload), start.Add(time.Second))
		assert.Equal(t, table.fixed, tracker.state.Fixed, table.payload)
	}
}

func TestFixTrackerReset(t *testing.T) {
	start := time.Now()
	tracker := newFixTracker(start)
	tracker.apply(decodeT(t, "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"), start.Add(time.Second))
	require.True(t, tracker.state.Fixed)

	restart := start.Add(time.Minute)
	tracker.reset(restart)
	assert.Equal(t, FixState{}, tracker.state)

	// time to first fix counts from the reset, not from construction
	tracker.apply(decodeT(t, "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"), restart.Add(5*time.Second))
	assert.Equal(t, 5*time.Second, tracker.state.TimeToFirstFix)
}
