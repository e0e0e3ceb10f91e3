// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package nmea

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ProtocolVersion selects between the two field layouts emitted by the
// receiver. Legacy firmware speaks NMEA 3.x; newer firmware (AXN_5 and later)
// appends one trailing field to RMC, GSA and GSV.
type ProtocolVersion int

const (
	VersionLegacy ProtocolVersion = iota
	VersionExtended
)

// Kind identifies the talker-independent sentence kind, or the full vendor
// sentence name for PMTK/PQ sentences.
type Kind string

const (
	KindGGA     Kind = "GGA"
	KindGLL     Kind = "GLL"
	KindRMC     Kind = "RMC"
	KindVTG     Kind = "VTG"
	KindGSA     Kind = "GSA"
	KindGSV     Kind = "GSV"
	KindAck     Kind = "PMTK001"
	KindRelease Kind = "PMTK705"
	KindLog     Kind = "PMTKLOG"
	KindVersion Kind = "PQVERNO"
)

var (
	// ErrUnknownKind is returned for sentence types this decoder does not
	// recognize. Callers treat it as "no new information".
	ErrUnknownKind = errors.New("nmea: unknown sentence kind")
	// ErrFieldCount is returned when the field count cannot be reconciled
	// with the schema arity for the active protocol version.
	ErrFieldCount = errors.New("nmea: field count does not match schema")
	// ErrBadFrame is returned for input that is not a $...*CC sentence.
	ErrBadFrame = errors.New("nmea: malformed sentence frame")
	// ErrChecksum is returned when the inbound checksum does not match the
	// payload.
	ErrChecksum = errors.New("nmea: checksum mismatch")
)

// Record is a decoded sentence.
type Record interface {
	Kind() Kind
}

// Position holds one latitude/longitude pair. Latitude and Longitude are in
// signed decimal degrees and set only when Valid is true, i.e. when both raw
// fields converted. Otherwise the raw ddmm.mmmm strings are all a record
// carries; a record is never half-converted.
type Position struct {
	Latitude  float64
	Longitude float64
	Valid     bool

	LatRaw string
	NS     string
	LonRaw string
	EW     string
}

func makePosition(latRaw, ns, lonRaw, ew string) Position {
	p := Position{LatRaw: latRaw, NS: ns, LonRaw: lonRaw, EW: ew}

	lat, errLat := Coordinate(latRaw, ns)
	lon, errLon := Coordinate(lonRaw, ew)
	if errLat == nil && errLon == nil {
		p.Latitude = lat
		p.Longitude = lon
		p.Valid = true
	}
	return p
}

// GGA is the GNSS fix data sentence.
type GGA struct {
	Talker     string
	Time       string
	Pos        Position
	FixStatus  string
	Satellites string
	HDOP       string
	Altitude   string
	AltUnit    string
	GeoidSep   string
	SepUnit    string
	DGPSAge    string
	DGPSStn    string
}

func (GGA) Kind() Kind { return KindGGA }

// GLL is the geographic position sentence.
type GLL struct {
	Talker    string
	Pos       Position
	Time      string
	DataValid string
	PosMode   string
}

func (GLL) Kind() Kind { return KindGLL }

// RMC is the recommended minimum position sentence. NavStatus is only
// populated under VersionExtended.
type RMC struct {
	Talker    string
	Time      string
	DataValid string
	Pos       Position
	Speed     string
	Course    string
	Date      string
	MagVar    string
	MagVarEW  string
	PosMode   string
	NavStatus string
}

func (RMC) Kind() Kind { return KindRMC }

// VTG is the course and ground speed sentence.
type VTG struct {
	Talker     string
	CourseTrue string
	CourseMag  string
	SpeedKnots string
	SpeedKmh   string
	PosMode    string
}

func (VTG) Kind() Kind { return KindVTG }

// GSA is the DOP and active satellites sentence. SystemID is only populated
// under VersionExtended.
type GSA struct {
	Talker     string
	Mode       string
	FixStatus  string
	Satellites [12]string
	PDOP       string
	HDOP       string
	VDOP       string
	SystemID   string
}

func (GSA) Kind() Kind { return KindGSA }

// GSVSat is one satellite group within a GSV sentence.
type GSVSat struct {
	ID        string
	Elevation string
	Azimuth   string
	SNR       string
}

// GSV is the satellites-in-view sentence. SignalID is only populated under
// VersionExtended.
type GSV struct {
	Talker     string
	Messages   string
	SequenceNr string
	SatsInView string
	Satellites [4]GSVSat
	SignalID   string
}

func (GSV) Kind() Kind { return KindGSV }

// Ack is the generic PMTK001 command acknowledgment.
type Ack struct {
	Command string
	Flag    string
}

func (Ack) Kind() Kind { return KindAck }

// Acknowledged reports whether the receiver accepted and executed the
// command (flag 3). Flags 0-2 mean invalid, unsupported and failed.
func (a Ack) Acknowledged() bool { return a.Flag == "3" }

// Release is the PMTK705 firmware release reply.
type Release struct {
	Release string
	BuildID string
	Model   string
	SDK     string
}

func (Release) Kind() Kind { return KindRelease }

// Log is the PMTKLOG logger status reply. The field layout varies with
// firmware, so the fields are passed through undecoded.
type Log struct {
	Fields []string
}

func (Log) Kind() Kind { return KindLog }

// Version is the PQVERNO chip version reply. Passed through undecoded like
// Log, the layout is firmware dependent.
type Version struct {
	Fields []string
}

func (Version) Kind() Kind { return KindVersion }

// arity returns the expected field count for kind (including the type
// field), or 0 when the kind is variable-length.
func arity(kind Kind, v ProtocolVersion) int {
	var n int
	switch kind {
	case KindGGA:
		n = 15
	case KindGLL:
		n = 8
	case KindRMC:
		n = 13
	case KindVTG:
		n = 10
	case KindGSA:
		n = 18
	case KindGSV:
		n = 20
	case KindAck:
		n = 3
	case KindRelease:
		n = 5
	default:
		return 0
	}

	if v == VersionExtended {
		switch kind {
		case KindRMC, KindGSA, KindGSV:
			n++
		}
	}
	return n
}

// classify maps the first field of a sentence to its talker prefix and kind.
func classify(typeField string) (talker string, kind Kind, err error) {
	switch {
	case typeField == string(KindAck):
		return "", KindAck, nil
	case typeField == string(KindRelease):
		return "", KindRelease, nil
	case typeField == string(KindLog):
		return "", KindLog, nil
	case typeField == string(KindVersion):
		return "", KindVersion, nil
	}

	if len(typeField) != 5 {
		return "", "", ErrUnknownKind
	}
	talker = typeField[:2]
	switch k := Kind(typeField[2:]); k {
	case KindGGA, KindGLL, KindRMC, KindVTG, KindGSA, KindGSV:
		return talker, k, nil
	}
	return "", "", ErrUnknownKind
}

// Decode parses one framed sentence ($...*CC, CRLF optional) into a typed
// record, using the field schema for protocol version v. Sentences shorter
// than the schema arity are padded with empty fields; longer ones fail with
// ErrFieldCount.
func Decode(line string, v ProtocolVersion) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "$") {
		return nil, ErrBadFrame
	}
	star := strings.LastIndexByte(line, '*')
	if star < 0 || len(line) < star+3 {
		return nil, ErrBadFrame
	}
	payload := line[1:star]

	want, err := hex.DecodeString(line[star+1 : star+3])
	if err != nil {
		return nil, ErrBadFrame
	}
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum ^= payload[i]
	}
	if sum != want[0] {
		return nil, fmt.Errorf("%w: computed %02X, sentence carries %02X",
			ErrChecksum, sum, want[0])
	}

	fields := strings.Split(payload, ",")
	talker, kind, err := classify(fields[0])
	if err != nil {
		return nil, err
	}

	if n := arity(kind, v); n > 0 {
		if len(fields) > n {
			return nil, fmt.Errorf("%w: %s has %d fields, schema allows %d",
				ErrFieldCount, kind, len(fields), n)
		}
		for len(fields) < n {
			fields = append(fields, "")
		}
	}

	switch kind {
	case KindGGA:
		return GGA{
			Talker:     talker,
			Time:       fields[1],
			Pos:        makePosition(fields[2], fields[3], fields[4], fields[5]),
			FixStatus:  fields[6],
			Satellites: fields[7],
			HDOP:       fields[8],
			Altitude:   fields[9],
			AltUnit:    fields[10],
			GeoidSep:   fields[11],
			SepUnit:    fields[12],
			DGPSAge:    fields[13],
			DGPSStn:    fields[14],
		}, nil
	case KindGLL:
		return GLL{
			Talker:    talker,
			Pos:       makePosition(fields[1], fields[2], fields[3], fields[4]),
			Time:      fields[5],
			DataValid: fields[6],
			PosMode:   fields[7],
		}, nil
	case KindRMC:
		r := RMC{
			Talker:    talker,
			Time:      fields[1],
			DataValid: fields[2],
			Pos:       makePosition(fields[3], fields[4], fields[5], fields[6]),
			Speed:     fields[7],
			Course:    fields[8],
			Date:      fields[9],
			MagVar:    fields[10],
			MagVarEW:  fields[11],
			PosMode:   fields[12],
		}
		if v == VersionExtended {
			r.NavStatus = fields[13]
		}
		return r, nil
	case KindVTG:
		return VTG{
			Talker:     talker,
			CourseTrue: fields[1],
			CourseMag:  fields[3],
			SpeedKnots: fields[5],
			SpeedKmh:   fields[7],
			PosMode:    fields[9],
		}, nil
	case KindGSA:
		g := GSA{
			Talker:    talker,
			Mode:      fields[1],
			FixStatus: fields[2],
			PDOP:      fields[15],
			HDOP:      fields[16],
			VDOP:      fields[17],
		}
		copy(g.Satellites[:], fields[3:15])
		if v == VersionExtended {
			g.SystemID = fields[18]
		}
		return g, nil
	case KindGSV:
		g := GSV{
			Talker:     talker,
			Messages:   fields[1],
			SequenceNr: fields[2],
			SatsInView: fields[3],
		}
		for i := 0; i < 4; i++ {
			g.Satellites[i] = GSVSat{
				ID:        fields[4+i*4],
				Elevation: fields[5+i*4],
				Azimuth:   fields[6+i*4],
				SNR:       fields[7+i*4],
			}
		}
		if v == VersionExtended {
			g.SignalID = fields[20]
		}
		return g, nil
	case KindAck:
		return Ack{Command: fields[1], Flag: fields[2]}, nil
	case KindRelease:
		return Release{
			Release: fields[1],
			BuildID: fields[2],
			Model:   fields[3],
			SDK:     fields[4],
		}, nil
	case KindLog:
		return Log{Fields: fields[1:]}, nil
	case KindVersion:
		return Version{Fields: fields[1:]}, nil
	}
	return nil, ErrUnknownKind
}
