// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package l76

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/sattrack/l76gnss/internal/nmea"
)

// command pairs a constant PMTK/PQ sentence body with its precomputed
// checksum. The checksum is recomputed before every send as a guard against
// a mistyped literal.
type command struct {
	text string
	sum  string
}

var (
	cmdHotStart      = command{"PMTK101", "32"}
	cmdWarmStart     = command{"PMTK102", "31"}
	cmdColdStart     = command{"PMTK103", "30"}
	cmdFullColdStart = command{"PMTK104", "37"}
	cmdStandby       = command{"PMTK161,0", "28"}
	cmdAlwaysOn      = command{"PMTK225,0", "2B"}
	cmdAlwaysLocate  = command{"PMTK225,8", "23"}
	cmdLogQuery      = command{"PMTK183", "38"}
	cmdReleaseQuery  = command{"PMTK605", "31"}
	cmdVersionQuery  = command{"PQVERNO,R", "3F"}
)

// defaultRetries is the extra send attempts Query makes after the first one
// times out.
const defaultRetries = 2

// Query validates the checksum of text against sum, sends the framed command
// and waits for a reply whose kind is in want. On a timed-out attempt the
// command is resent, up to maxRetries extra times; when the budget is
// exhausted ErrNoReply is returned. An empty want set makes the command
// fire-and-forget: it is sent once and nil is returned.
func (d *Device) Query(text, sum string, want []nmea.Kind, timeout time.Duration, maxRetries int) (nmea.Record, error) {
	if computed := nmea.Checksum(text); !strings.EqualFold(computed, sum) {
		return nil, fmt.Errorf("l76/Device.Query: %q computes to %s, not %s: %w",
			text, computed, strings.ToUpper(sum), ErrChecksumMismatch)
	}
	framed := []byte(fmt.Sprintf("$%s*%s\r\n", text, strings.ToUpper(sum)))

	wanted := make(map[nmea.Kind]bool, len(want))
	for _, k := range want {
		wanted[k] = true
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := d.tr.Write(framed); err != nil {
			return nil, fmt.Errorf("l76/Device.Query: %w", err)
		}
		if len(wanted) == 0 {
			return nil, nil
		}

		rec, err := d.awaitKinds(wanted, d.now().Add(timeout))
		if err == nil {
			return rec, nil
		}
	}
	return nil, ErrNoReply
}

// send runs a constant command expecting no reply.
func (d *Device) send(c command) error {
	_, err := d.Query(c.text, c.sum, nil, 0, 0)
	return err
}

// ack runs a constant command and waits for its PMTK001 acknowledgment.
func (d *Device) ack(c command, timeout time.Duration) error {
	return d.awaitAck(c.text, c.sum, timeout)
}

func (d *Device) awaitAck(text, sum string, timeout time.Duration) error {
	rec, err := d.Query(text, sum, []nmea.Kind{nmea.KindAck}, timeout, defaultRetries)
	if err != nil {
		return err
	}
	ack := rec.(nmea.Ack)

	// the ack carries the numeric command id, e.g. "161" for PMTK161
	if id := strings.TrimPrefix(strings.SplitN(text, ",", 2)[0], "PMTK"); ack.Command != id {
		return fmt.Errorf("l76: ack for command %s while waiting on %s: %w",
			ack.Command, id, ErrNoReply)
	}
	if !ack.Acknowledged() {
		return fmt.Errorf("l76: %s flag %s: %w", text, ack.Flag, ErrRejected)
	}
	return nil
}

// Standby puts the receiver into standby. It keeps its state and resumes on
// any command.
func (d *Device) Standby(timeout time.Duration) error {
	return d.ack(cmdStandby, timeout)
}

// AlwaysOn returns the receiver to full-power continuous operation.
func (d *Device) AlwaysOn(timeout time.Duration) error {
	return d.ack(cmdAlwaysOn, timeout)
}

// AlwaysLocate enables the receiver's adaptive AlwaysLocate standby mode.
func (d *Device) AlwaysLocate(timeout time.Duration) error {
	return d.ack(cmdAlwaysLocate, timeout)
}

// HotStart restarts the receiver using all stored data. The receiver reboots
// without acknowledging.
func (d *Device) HotStart() error { return d.send(cmdHotStart) }

// WarmStart restarts the receiver discarding ephemerides.
func (d *Device) WarmStart() error { return d.send(cmdWarmStart) }

// ColdStart restarts the receiver discarding time, position, almanac and
// ephemerides.
func (d *Device) ColdStart() error { return d.send(cmdColdStart) }

// FullColdStart is a cold start that additionally resets the receiver
// configuration to factory defaults.
func (d *Device) FullColdStart() error { return d.send(cmdFullColdStart) }

// periodicModes are the values PMTK225 accepts: normal, periodic backup,
// periodic standby, AlwaysLocate standby, AlwaysLocate backup.
var periodicModes = map[int]bool{0: true, 1: true, 2: true, 8: true, 9: true}

// SetPeriodicMode configures PMTK225 periodic power saving. Durations are in
// milliseconds; the second run/sleep pair governs the extended attempt cycle
// and may be zero.
func (d *Device) SetPeriodicMode(mode, runMS, sleepMS, secondRunMS, secondSleepMS int, timeout time.Duration) error {
	if !periodicModes[mode] {
		return fmt.Errorf("l76/Device.SetPeriodicMode: invalid mode %d", mode)
	}
	text := fmt.Sprintf("PMTK225,%d,%d,%d,%d,%d", mode, runMS, sleepMS, secondRunMS, secondSleepMS)
	return d.awaitAck(text, nmea.Checksum(text), timeout)
}

// ChipVersion queries the chip version (PQVERNO) and returns the raw reply
// fields.
func (d *Device) ChipVersion(timeout time.Duration) ([]string, error) {
	rec, err := d.Query(cmdVersionQuery.text, cmdVersionQuery.sum,
		[]nmea.Kind{nmea.KindVersion}, timeout, defaultRetries)
	if err != nil {
		return nil, err
	}
	return rec.(nmea.Version).Fields, nil
}

// FirmwareRelease queries the firmware release (PMTK605 -> PMTK705).
func (d *Device) FirmwareRelease(timeout time.Duration) (nmea.Release, error) {
	rec, err := d.Query(cmdReleaseQuery.text, cmdReleaseQuery.sum,
		[]nmea.Kind{nmea.KindRelease}, timeout, defaultRetries)
	if err != nil {
		return nmea.Release{}, err
	}
	return rec.(nmea.Release), nil
}

// LogStatus queries the logger status (PMTK183 -> PMTKLOG).
func (d *Device) LogStatus(timeout time.Duration) ([]string, error) {
	rec, err := d.Query(cmdLogQuery.text, cmdLogQuery.sum,
		[]nmea.Kind{nmea.KindLog}, timeout, defaultRetries)
	if err != nil {
		return nil, err
	}
	return rec.(nmea.Log).Fields, nil
}

// DetectVersion queries the firmware release and selects the sentence schema
// accordingly: AXN_5 and later firmware emits the NMEA 4.1 trailing fields.
// On a failed query the schema is left untouched and the error returned, so
// a caller can keep the legacy default.
func (d *Device) DetectVersion(timeout time.Duration) (nmea.ProtocolVersion, error) {
	rel, err := d.FirmwareRelease(timeout)
	if err != nil {
		return d.Version, fmt.Errorf("l76/Device.DetectVersion: %w", err)
	}

	d.Version = nmea.VersionLegacy
	if extendedRelease(rel.Release) {
		d.Version = nmea.VersionExtended
	}
	return d.Version, nil
}

// extendedRelease reports whether a firmware release string ("AXN_5.1.6",
// "AXN_3.8_3333...") belongs to the NMEA 4.1 generation (AXN_5 and later).
func extendedRelease(release string) bool {
	rest, found := strings.CutPrefix(release, "AXN_")
	if !found {
		return false
	}
	major := 0
	for _, c := range rest {
		if c < '0' || c > '9' {
			break
		}
		major = major*10 + int(c-'0')
	}
	return major >= 5
}
