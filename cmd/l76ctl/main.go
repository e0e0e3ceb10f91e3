// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gitlab.com/sattrack/l76gnss/internal/l76"
	"gitlab.com/sattrack/l76gnss/internal/nmea"
	"gitlab.com/sattrack/l76gnss/internal/transport"
)

func usage() {
	flag.CommandLine.Usage()
}

func main() {
	var devPath string
	flag.StringVar(&devPath, "d", "/dev/ttyUSB0", "Path to the receiver's serial device.")
	var baud int
	flag.IntVar(&baud, "b", 9600, "Baud rate, only applicable to serial devices.")
	var useI2C bool
	flag.BoolVar(&useI2C, "i", false, "Reach the receiver over I2C instead of a serial device.")
	var i2cBus string
	flag.StringVar(&i2cBus, "bus", "", "I2C bus name, empty for the first available one.")
	var i2cAddr int
	flag.IntVar(&i2cAddr, "a", transport.DefaultI2CAddr, "I2C address of the receiver.")
	var timeoutSec int
	flag.IntVar(&timeoutSec, "t", 60, "Timeout in seconds for waiting on sentences and replies.")
	var extended bool
	flag.BoolVar(&extended, "x", false, "Decode with the extended (NMEA 4.1) sentence schema.")
	var help bool
	flag.BoolVar(&help, "h", false, "Print help and quit.")

	flag.Usage = func() {
		fmt.Println("usage: l76ctl [OPTION...] COMMAND")
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println("Commands:")
		fmt.Printf("  %-12s\t%s\n", "fix", "Wait for a position fix and print it.")
		fmt.Printf("  %-12s\t%s\n", "refix", "Discard the current fix and wait for a new one.")
		fmt.Printf("  %-12s\t%s\n", "coords", "Print latitude/longitude in decimal degrees.")
		fmt.Printf("  %-12s\t%s\n", "loc", "Print latitude, longitude, HDOP and altitude.")
		fmt.Printf("  %-12s\t%s\n", "speed", "Print ground speed (km/h) and true course.")
		fmt.Printf("  %-12s\t%s\n", "sog", "Print speed over ground (knots) and course.")
		fmt.Printf("  %-12s\t%s\n", "time", "Print the receiver's UTC time.")
		fmt.Printf("  %-12s\t%s\n", "datetime", "Print the receiver's UTC date and time.")
		fmt.Printf("  %-12s\t%s\n", "version", "Query the chip version.")
		fmt.Printf("  %-12s\t%s\n", "release", "Query the firmware release.")
		fmt.Printf("  %-12s\t%s\n", "log", "Query the logger status.")
		fmt.Printf("  %-12s\t%s\n", "standby", "Put the receiver into standby.")
		fmt.Printf("  %-12s\t%s\n", "alwayson", "Return the receiver to continuous operation.")
		fmt.Printf("  %-12s\t%s\n", "alwayslocate", "Enable the adaptive AlwaysLocate mode.")
		fmt.Printf("  %-12s\t%s\n", "periodic <mode> <run-ms> <sleep-ms> [run2-ms sleep2-ms]", "Configure periodic power saving.")
		fmt.Printf("  %-12s\t%s\n", "hot|warm|cold|fullcold", "Restart the receiver.")
	}

	flag.Parse()

	if help || flag.Arg(0) == "" {
		usage()
		return
	}

	var tr l76.Transport
	if useI2C {
		t, err := transport.OpenI2C(i2cBus, uint16(i2cAddr))
		if err != nil {
			log.Fatal(err)
		}
		defer t.Close()
		tr = t
	} else {
		t, err := transport.OpenSerial(devPath, baud, time.Second)
		if err != nil {
			log.Fatal(err)
		}
		defer t.Close()
		tr = t
	}

	dev := l76.New(tr)
	if extended {
		dev.Version = nmea.VersionExtended
	}
	timeout := time.Duration(timeoutSec) * time.Second

	switch cmd := flag.Arg(0); cmd {
	case "fix", "refix":
		state := dev.GetFix(cmd == "refix", timeout)
		if !state.Fixed {
			fmt.Println("no fix")
			return
		}
		fmt.Printf("fixed after %s\n", state.TimeToFirstFix)
		if state.HasPosition {
			fmt.Printf("%.6f, %.6f\n", state.Latitude, state.Longitude)
		}
	case "coords":
		lat, lon, err := dev.Coordinates(timeout)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%.6f, %.6f\n", lat, lon)
	case "loc":
		lat, lon, hdop, alt, err := dev.Location(true, timeout)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%.6f, %.6f (hdop %.1f, altitude %.1f m)\n", lat, lon, hdop, alt)
	case "speed":
		kmh, course, err := dev.Speed(timeout)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%.1f km/h, course %.1f\n", kmh, course)
	case "sog":
		knots, course, err := dev.SpeedOverGround(timeout)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%.1f kn, course %.1f\n", knots, course)
	case "time":
		t, err := dev.UTCTime(timeout)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(t)
	case "datetime":
		t, err := dev.UTCDateTime(timeout)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(t)
	case "version":
		fields, err := dev.ChipVersion(timeout)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(strings.Join(fields, " "))
	case "release":
		rel, err := dev.FirmwareRelease(timeout)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("release %s, build %s, model %s, SDK %s\n",
			rel.Release, rel.BuildID, rel.Model, rel.SDK)
	case "log":
		fields, err := dev.LogStatus(timeout)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(strings.Join(fields, " "))
	case "standby":
		if err := dev.Standby(timeout); err != nil {
			log.Fatal(err)
		}
	case "alwayson":
		if err := dev.AlwaysOn(timeout); err != nil {
			log.Fatal(err)
		}
	case "alwayslocate":
		if err := dev.AlwaysLocate(timeout); err != nil {
			log.Fatal(err)
		}
	case "periodic":
		args := flag.Args()[1:]
		if len(args) != 3 && len(args) != 5 {
			usage()
			return
		}
		vals := make([]int, 5)
		for i, a := range args {
			v, err := strconv.Atoi(a)
			if err != nil {
				log.Fatalf("invalid argument %q: %s", a, err)
			}
			vals[i] = v
		}
		if err := dev.SetPeriodicMode(vals[0], vals[1], vals[2], vals[3], vals[4], timeout); err != nil {
			log.Fatal(err)
		}
	case "hot":
		if err := dev.HotStart(); err != nil {
			log.Fatal(err)
		}
	case "warm":
		if err := dev.WarmStart(); err != nil {
			log.Fatal(err)
		}
	case "cold":
		if err := dev.ColdStart(); err != nil {
			log.Fatal(err)
		}
	case "fullcold":
		if err := dev.FullColdStart(); err != nil {
			log.Fatal(err)
		}
	default:
		fmt.Printf("Unknown command: %q\n", cmd)
		usage()
	}
}
