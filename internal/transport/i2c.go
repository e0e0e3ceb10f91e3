// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultI2CAddr is the bus address the L76 family answers on.
const DefaultI2CAddr = 0x10

var hostInit sync.Once

// I2C is a receiver polled over the I2C bus, the wiring used by the pytrack
// style carrier boards. The receiver answers every read with up to 255
// bytes and pads idle reads with line-feed filler, which the stream
// assembler discards as noise.
type I2C struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// OpenI2C opens the named bus ("" selects the first available one) and binds
// the receiver address.
func OpenI2C(busName string, addr uint16) (*I2C, error) {
	var initErr error
	hostInit.Do(func() {
		_, initErr = host.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("transport.OpenI2C: %w", initErr)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("transport.OpenI2C: %w", err)
	}

	return &I2C{
		bus: bus,
		dev: &i2c.Dev{Bus: bus, Addr: addr},
	}, nil
}

func (t *I2C) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := t.dev.Tx(nil, buf); err != nil {
		return nil, fmt.Errorf("transport/I2C.Read: %w", err)
	}
	return buf, nil
}

func (t *I2C) Write(p []byte) error {
	if err := t.dev.Tx(p, nil); err != nil {
		return fmt.Errorf("transport/I2C.Write: %w", err)
	}
	return nil
}

func (t *I2C) Close() error {
	if err := t.bus.Close(); err != nil {
		return fmt.Errorf("transport/I2C.Close: %w", err)
	}
	return nil
}
