// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml"
)

type Config struct {
	// transport selection: "serial" or "i2c"
	Transport  string `toml:"transport"`
	DevicePath string `toml:"device_path"`
	BaudRate   int    `toml:"device_baud_rate"`
	I2CBus     string `toml:"i2c_bus"`
	I2CAddr    int    `toml:"i2c_address"`

	// raw sentence sharing over a unix socket; empty disables it
	Socket     string `toml:"socket"`
	OwnerGroup string `toml:"group"`

	// fix publishing
	FixTimeout   int    `toml:"fix_timeout_seconds"`
	MQTTBroker   string `toml:"mqtt_broker"`
	MQTTClientID string `toml:"mqtt_client_id"`
	MQTTTopic    string `toml:"mqtt_topic"`
}

func Parse(file string) (c *Config, err error) {
	contents, err := os.ReadFile(file)
	if err != nil {
		err = fmt.Errorf("config.Parse(): %w", err)
		return
	}

	c = &Config{
		Transport:    "serial",
		BaudRate:     9600,
		I2CAddr:      0x10,
		FixTimeout:   180,
		MQTTClientID: "l76trackd",
		MQTTTopic:    "gnss/fix",
	}

	if err = toml.Unmarshal(contents, c); err != nil {
		err = fmt.Errorf("config.Parse(): %w", err)
		return
	}

	switch c.Transport {
	case "serial", "i2c":
	default:
		err = fmt.Errorf("config.Parse(): unknown transport %q", c.Transport)
	}

	return
}
