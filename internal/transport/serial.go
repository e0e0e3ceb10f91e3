// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transport provides the byte-level links a GNSS receiver is reached
// through: a serial port or the I2C bus. Both satisfy the driver's Transport
// interface and give no framing guarantees.
package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Serial is a receiver attached to a serial interface, e.g. /dev/ttyUSB0 or
// /dev/ttyAMA0.
type Serial struct {
	path string
	port serial.Port
}

// OpenSerial opens the port and applies a read timeout so polls return short
// (possibly empty) reads instead of blocking forever.
func OpenSerial(path string, baud int, readTimeout time.Duration) (*Serial, error) {
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("transport.OpenSerial: %w", err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport.OpenSerial: %w", err)
	}

	return &Serial{path: path, port: port}, nil
}

func (s *Serial) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	cnt, err := s.port.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("transport/Serial.Read: %w", err)
	}
	return buf[:cnt], nil
}

func (s *Serial) Write(p []byte) error {
	if _, err := s.port.Write(p); err != nil {
		return fmt.Errorf("transport/Serial.Write: %w", err)
	}
	return nil
}

func (s *Serial) Close() error {
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("transport/Serial.Close: %w", err)
	}
	return nil
}
