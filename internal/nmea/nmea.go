// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package nmea

import (
	"fmt"
	"math"
	"strconv"
)

// Sentence is an outbound NMEA0183 sentence, e.g. a PMTK command. The
// checksum is computed over Type and Data when the sentence is rendered.
type Sentence struct {
	Type string
	Data []string
}

// Checksum returns the XOR of all bytes in s, rendered as two uppercase hex
// digits. This is the NMEA0183 checksum covering everything between '$' and
// '*'.
func Checksum(s string) string {
	var sum uint8
	for i := 0; i < len(s); i++ {
		sum ^= s[i]
	}

	return fmt.Sprintf("%02X", sum)
}

func (s Sentence) String() string {
	sentence := s.Type
	for _, d := range s.Data {
		sentence = fmt.Sprintf("%s,%s", sentence, d)
	}

	return fmt.Sprintf("$%s*%s", sentence, Checksum(sentence))
}

func (s Sentence) Bytes() []byte {
	return []byte(s.String())
}

// Coordinate converts a ddmm.mmmm (or dddmm.mmmm) value and its hemisphere
// letter to signed decimal degrees: floor(v/100) + mod(v,100)/60, negated for
// the southern and western hemispheres.
func Coordinate(value, hemisphere string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("nmea.Coordinate: %w", err)
	}

	deg := math.Floor(v/100) + math.Mod(v, 100)/60

	switch hemisphere {
	case "N", "E":
	case "S", "W":
		deg = -deg
	default:
		return 0, fmt.Errorf("nmea.Coordinate: unknown hemisphere %q", hemisphere)
	}

	return deg, nil
}
