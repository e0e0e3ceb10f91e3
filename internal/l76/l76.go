// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package l76 drives a Quectel L76 family GNSS receiver over a polled byte
// transport. The receiver emits NMEA0183 sentences in a continuous chunked
// stream; configuration and power state are changed through checksummed
// PMTK/PQ command sentences.
package l76

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gitlab.com/sattrack/l76gnss/internal/nmea"
)

// Transport is the byte-level link to the receiver. Read blocks for at most
// one poll, may return fewer bytes than requested and may return an empty
// chunk on a transient failure. There are no framing guarantees.
type Transport interface {
	Read(n int) ([]byte, error)
	Write(p []byte) error
}

var (
	// ErrTimeout is returned when no qualifying sentence arrived within the
	// caller's deadline. Absence of data is an expected steady-state
	// condition, not a defect.
	ErrTimeout = errors.New("l76: timed out waiting for sentence")
	// ErrNoReply is returned when a command's retry budget is exhausted
	// without a matching reply.
	ErrNoReply = errors.New("l76: no reply after retries")
	// ErrChecksumMismatch is returned when a caller-supplied command
	// checksum does not match the command text. The command is not sent.
	ErrChecksumMismatch = errors.New("l76: command checksum mismatch")
	// ErrRejected is returned when the receiver acknowledges a command with
	// a non-success flag.
	ErrRejected = errors.New("l76: command rejected by receiver")
)

// defaultPollInterval is how long the poll loop idles after a read that
// produced no sentence, to avoid hammering the bus.
const defaultPollInterval = 2 * time.Millisecond

// Device is a single-owner handle to the receiver. It is not safe for
// concurrent use: the protocol is strictly one in-flight request at a time.
type Device struct {
	// Version selects the sentence field schema. Set it directly for a
	// known receiver, or let DetectVersion query the firmware.
	Version nmea.ProtocolVersion

	// SentenceHook, when set, observes every framed sentence before it is
	// decoded. Used by daemons that re-share the raw stream.
	SentenceHook func(sentence string)

	tr   Transport
	asm  *assembler
	fix  fixTracker
	poll time.Duration
	now  func() time.Time
}

func New(tr Transport) *Device {
	d := &Device{
		tr:   tr,
		asm:  newAssembler(tr),
		poll: defaultPollInterval,
		now:  time.Now,
	}
	d.fix = newFixTracker(d.now())
	return d
}

// readRecord polls the transport until a decodable sentence arrives or the
// deadline passes. Every decoded record is fed to the fix tracker before it
// is handed to the caller, so fix state stays current no matter which
// operation is pulling sentences.
func (d *Device) readRecord(deadline time.Time) (nmea.Record, error) {
	for {
		sentence, ok := d.asm.next()
		if ok {
			if d.SentenceHook != nil {
				d.SentenceHook(sentence)
			}
			rec, err := nmea.Decode(sentence, d.Version)
			if err == nil {
				d.fix.apply(rec, d.now())
				return rec, nil
			}
			// undecodable sentence: no new information this poll
		} else {
			time.Sleep(d.poll)
		}

		if !d.now().Before(deadline) {
			return nil, ErrTimeout
		}
	}
}

// awaitKinds polls until a record of one of the wanted kinds arrives.
func (d *Device) awaitKinds(want map[nmea.Kind]bool, deadline time.Time) (nmea.Record, error) {
	for {
		rec, err := d.readRecord(deadline)
		if err != nil {
			return nil, err
		}
		if want[rec.Kind()] {
			return rec, nil
		}
	}
}

// GetFix polls the sentence stream until the receiver reports a fix or the
// timeout elapses, and returns the resulting state. A timeout is not an
// error: the returned state simply still has Fixed unset. When force is
// true the current fix is discarded first and the time-to-first-fix clock
// restarts.
func (d *Device) GetFix(force bool, timeout time.Duration) FixState {
	if force {
		d.fix.reset(d.now())
	}

	deadline := d.now().Add(timeout)
	for !d.fix.state.Fixed {
		if _, err := d.readRecord(deadline); err != nil {
			break
		}
	}
	return d.fix.state
}

// Fix returns the current fix state without touching the transport.
func (d *Device) Fix() FixState {
	return d.fix.state
}

// Message waits for the next record of one of the given kinds.
func (d *Device) Message(kinds []nmea.Kind, timeout time.Duration) (nmea.Record, error) {
	want := make(map[nmea.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	if len(want) == 0 {
		return nil, fmt.Errorf("l76/Device.Message: no sentence kinds given")
	}
	return d.awaitKinds(want, d.now().Add(timeout))
}

// Coordinates waits for a GGA sentence carrying a converted position and
// returns it in decimal degrees.
func (d *Device) Coordinates(timeout time.Duration) (lat, lon float64, err error) {
	deadline := d.now().Add(timeout)
	for {
		rec, err := d.awaitKinds(map[nmea.Kind]bool{nmea.KindGGA: true}, deadline)
		if err != nil {
			return 0, 0, err
		}
		if gga := rec.(nmea.GGA); gga.Pos.Valid {
			return gga.Pos.Latitude, gga.Pos.Longitude, nil
		}
	}
}

// Location returns position, HDOP and altitude from the next positioned GGA
// sentence. With msl set the altitude is above mean sea level, otherwise the
// geoid separation is returned.
func (d *Device) Location(msl bool, timeout time.Duration) (lat, lon, hdop, alt float64, err error) {
	deadline := d.now().Add(timeout)
	for {
		rec, err := d.awaitKinds(map[nmea.Kind]bool{nmea.KindGGA: true}, deadline)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		gga := rec.(nmea.GGA)
		if !gga.Pos.Valid {
			continue
		}

		hdop, err = strconv.ParseFloat(gga.HDOP, 64)
		if err != nil {
			continue
		}
		altField := gga.Altitude
		if !msl {
			altField = gga.GeoidSep
		}
		alt, err = strconv.ParseFloat(altField, 64)
		if err != nil {
			continue
		}
		return gga.Pos.Latitude, gga.Pos.Longitude, hdop, alt, nil
	}
}

// Speed returns ground speed in km/h and true course from the next VTG
// sentence.
func (d *Device) Speed(timeout time.Duration) (kmh, course float64, err error) {
	deadline := d.now().Add(timeout)
	for {
		rec, err := d.awaitKinds(map[nmea.Kind]bool{nmea.KindVTG: true}, deadline)
		if err != nil {
			return 0, 0, err
		}
		vtg := rec.(nmea.VTG)
		kmh, errSpeed := strconv.ParseFloat(vtg.SpeedKmh, 64)
		course, errCourse := strconv.ParseFloat(vtg.CourseTrue, 64)
		if errSpeed == nil && errCourse == nil {
			return kmh, course, nil
		}
	}
}

// SpeedOverGround returns speed in knots and course over ground from the
// next RMC sentence.
func (d *Device) SpeedOverGround(timeout time.Duration) (knots, course float64, err error) {
	deadline := d.now().Add(timeout)
	for {
		rec, err := d.awaitKinds(map[nmea.Kind]bool{nmea.KindRMC: true}, deadline)
		if err != nil {
			return 0, 0, err
		}
		rmc := rec.(nmea.RMC)
		knots, errSpeed := strconv.ParseFloat(rmc.Speed, 64)
		course, errCourse := strconv.ParseFloat(rmc.Course, 64)
		if errSpeed == nil && errCourse == nil {
			return knots, course, nil
		}
	}
}

// UTCTime returns the receiver's UTC time as HH:MM:SS from the next GGA
// sentence.
func (d *Device) UTCTime(timeout time.Duration) (string, error) {
	deadline := d.now().Add(timeout)
	for {
		rec, err := d.awaitKinds(map[nmea.Kind]bool{nmea.KindGGA: true}, deadline)
		if err != nil {
			return "", err
		}
		t := rec.(nmea.GGA).Time
		if len(t) >= 6 {
			return fmt.Sprintf("%s:%s:%s", t[0:2], t[2:4], t[4:6]), nil
		}
	}
}

// UTCDateTime combines the date and time of the next RMC sentence into an
// RFC3339 UTC timestamp.
func (d *Device) UTCDateTime(timeout time.Duration) (string, error) {
	deadline := d.now().Add(timeout)
	for {
		rec, err := d.awaitKinds(map[nmea.Kind]bool{nmea.KindRMC: true}, deadline)
		if err != nil {
			return "", err
		}
		rmc := rec.(nmea.RMC)
		if len(rmc.Date) < 6 || len(rmc.Time) < 6 {
			continue
		}
		// RMC date is ddmmyy
		return fmt.Sprintf("20%s-%s-%sT%s:%s:%s+00:00",
			rmc.Date[4:6], rmc.Date[2:4], rmc.Date[0:2],
			rmc.Time[0:2], rmc.Time[2:4], rmc.Time[4:6]), nil
	}
}
