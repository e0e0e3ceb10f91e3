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

func sentence(payload string) string {
	return nmea.Sentence{Type: payload}.String() + "\r\n"
}

func TestGetFixTimesOutWithoutError(t *testing.T) {
	tr := &fakeTransport{}
	dev := New(tr)

	state := dev.GetFix(false, 20*time.Millisecond)
	assert.False(t, state.Fixed)
}

func TestGetFixFromStream(t *testing.T) {
	tr := &fakeTransport{}
	tr.queue(
		"garbage\xff\x00",
		sentence("GPGSV,3,1,11,09,78,272,45"),
		sentence("GPGGA,123519,,,,,0,00,99.0,,M,,M,,"),
		sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"),
	)
	dev := New(tr)

	state := dev.GetFix(false, time.Second)
	require.True(t, state.Fixed)
	require.True(t, state.HasPosition)
	assert.InDelta(t, 48.1173, state.Latitude, 1e-4)
	assert.InDelta(t, 11.5167, state.Longitude, 1e-4)
	assert.NotZero(t, state.TimeOfFix)

	// forcing a re-fix with nothing on the wire clears the state
	state = dev.GetFix(true, 10*time.Millisecond)
	assert.False(t, state.Fixed)
}

func TestCoordinates(t *testing.T) {
	tr := &fakeTransport{}
	tr.queue(
		sentence("GPGGA,123519,,,,,0,00,99.0,,M,,M,,"),
		sentence("GPGGA,123520,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"),
	)
	dev := New(tr)

	lat, lon, err := dev.Coordinates(time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, lat, 1e-4)
	assert.InDelta(t, 11.5167, lon, 1e-4)

	_, _, err = dev.Coordinates(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestLocation(t *testing.T) {
	tr := &fakeTransport{}
	tr.queue(sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))
	dev := New(tr)

	lat, _, hdop, alt, err := dev.Location(true, time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, lat, 1e-4)
	assert.InDelta(t, 0.9, hdop, 1e-6)
	assert.InDelta(t, 545.4, alt, 1e-6)

	tr.queue(sentence("GPGGA,123520,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))
	_, _, _, sep, err := dev.Location(false, time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 46.9, sep, 1e-6)
}

func TestSpeedGetters(t *testing.T) {
	tr := &fakeTransport{}
	tr.queue(sentence("GPVTG,084.4,T,,M,022.4,N,041.5,K,A"))
	dev := New(tr)

	kmh, course, err := dev.Speed(time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 41.5, kmh, 1e-6)
	assert.InDelta(t, 84.4, course, 1e-6)

	tr.queue(sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,,,A"))
	knots, course, err := dev.SpeedOverGround(time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 22.4, knots, 1e-6)
	assert.InDelta(t, 84.4, course, 1e-6)
}

func TestUTCGetters(t *testing.T) {
	tr := &fakeTransport{}
	tr.queue(sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))
	dev := New(tr)

	clock, err := dev.UTCTime(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "12:35:19", clock)

	tr.queue(sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,061225,,,A"))
	stamp, err := dev.UTCDateTime(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "2025-12-06T12:35:19+00:00", stamp)
}

func TestMessage(t *testing.T) {
	tr := &fakeTransport{}
	tr.queue(
		sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"),
		sentence("GPVTG,084.4,T,,M,022.4,N,041.5,K,A"),
	)
	dev := New(tr)

	rec, err := dev.Message([]nmea.Kind{nmea.KindVTG, nmea.KindRMC}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, nmea.KindVTG, rec.Kind())

	// the skipped GGA still fed the fix tracker
	assert.True(t, dev.Fix().Fixed)

	_, err = dev.Message(nil, time.Second)
	assert.Error(t, err)
}

func TestQueryRetriesThenFails(t *testing.T) {
	tr := &fakeTransport{}
	dev := New(tr)

	_, err := dev.Query("PMTK605", "31", []nmea.Kind{nmea.KindRelease}, 15*time.Millisecond, 2)
	assert.ErrorIs(t, err, ErrNoReply)
	// initial send plus exactly two retries
	require.Len(t, tr.writes, 3)
	for _, w := range tr.writes {
		assert.Equal(t, "$PMTK605*31\r\n", w)
	}
}

func TestQueryChecksumGuard(t *testing.T) {
	tr := &fakeTransport{}
	dev := New(tr)

	_, err := dev.Query("PMTK605", "00", []nmea.Kind{nmea.KindRelease}, time.Second, 2)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Empty(t, tr.writes, "command must not be sent on checksum mismatch")
}

func TestQueryFireAndForget(t *testing.T) {
	tr := &fakeTransport{}
	dev := New(tr)

	require.NoError(t, dev.HotStart())
	require.Len(t, tr.writes, 1)
	assert.Equal(t, "$PMTK101*32\r\n", tr.writes[0])
}

func TestQueryMatchingReply(t *testing.T) {
	tr := &fakeTransport{}
	tr.onWrite = func(f *fakeTransport, p []byte) {
		// receiver streams a position sentence before the reply
		f.queue(
			sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"),
			sentence("PMTK705,AXN_5.1.6,0000,QUECTEL-L76L,1.0"),
		)
	}
	dev := New(tr)

	rel, err := dev.FirmwareRelease(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "AXN_5.1.6", rel.Release)
	assert.Equal(t, "QUECTEL-L76L", rel.Model)
	require.Len(t, tr.writes, 1)
}

func TestStandbyAck(t *testing.T) {
	tr := &fakeTransport{}
	tr.onWrite = func(f *fakeTransport, p []byte) {
		f.queue(sentence("PMTK001,161,3"))
	}
	dev := New(tr)
	require.NoError(t, dev.Standby(time.Second))
	assert.Equal(t, "$PMTK161,0*28\r\n", tr.writes[0])

	// a non-success flag surfaces as a rejection
	tr = &fakeTransport{}
	tr.onWrite = func(f *fakeTransport, p []byte) {
		f.queue(sentence("PMTK001,161,2"))
	}
	dev = New(tr)
	assert.ErrorIs(t, dev.Standby(time.Second), ErrRejected)
}

func TestSetPeriodicMode(t *testing.T) {
	tr := &fakeTransport{}
	tr.onWrite = func(f *fakeTransport, p []byte) {
		f.queue(sentence("PMTK001,225,3"))
	}
	dev := New(tr)

	require.NoError(t, dev.SetPeriodicMode(2, 3000, 12000, 18000, 72000, time.Second))
	assert.Equal(t, "$PMTK225,2,3000,12000,18000,72000*15\r\n", tr.writes[0])

	assert.Error(t, dev.SetPeriodicMode(5, 0, 0, 0, 0, time.Second))
}

func TestDetectVersion(t *testing.T) {
	tables := []struct {
		release string
		want    nmea.ProtocolVersion
	}{
		{"AXN_5.1.6,0000,QUECTEL-L76L,1.0", nmea.VersionExtended},
		{"AXN_3.8_3333_16042118,0000,QUECTEL-L76,1.0", nmea.VersionLegacy},
	}

	for _, table := range tables {
		tr := &fakeTransport{}
		reply := sentence("PMTK705," + table.release)
		tr.onWrite = func(f *fakeTransport, p []byte) { f.queue(reply) }
		dev := New(tr)

		got, err := dev.DetectVersion(time.Second)
		require.NoError(t, err, table.release)
		assert.Equal(t, table.want, got, table.release)
		assert.Equal(t, table.want, dev.Version)
	}

	// query failure leaves the configured schema alone
	dev := New(&fakeTransport{})
	dev.Version = nmea.VersionExtended
	_, err := dev.DetectVersion(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrNoReply)
	assert.Equal(t, nmea.VersionExtended, dev.Version)
}
