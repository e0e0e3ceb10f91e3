// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"gitlab.com/sattrack/l76gnss/internal/config"
	"gitlab.com/sattrack/l76gnss/internal/l76"
	"gitlab.com/sattrack/l76gnss/internal/nmea"
	"gitlab.com/sattrack/l76gnss/internal/pool"
	"gitlab.com/sattrack/l76gnss/internal/transport"
)

// fixPayload is the JSON document published for every position sentence.
type fixPayload struct {
	Fixed       bool    `json:"fixed"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	TimeOfFix   string  `json:"time_of_fix,omitempty"`
	TTFFSeconds float64 `json:"ttff_seconds,omitempty"`
}

func usage() {
	flag.CommandLine.Usage()
}

func main() {
	var confFile string
	flag.StringVar(&confFile, "c", "/etc/l76trackd.conf", "Configuration file to use.")
	var help bool
	flag.BoolVar(&help, "h", false, "Print help and quit.")

	flag.Usage = func() {
		fmt.Println("usage: l76trackd [OPTION...]")
		fmt.Println("Options:")
		flag.PrintDefaults()
	}

	flag.Parse()

	if help {
		usage()
		return
	}

	conf, err := config.Parse(confFile)
	if err != nil {
		log.Fatal(err)
	}

	tr, closeTransport, err := openTransport(conf)
	if err != nil {
		log.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		closeTransport()
		os.Exit(0)
	}()

	dev := l76.New(tr)
	if v, err := dev.DetectVersion(5 * time.Second); err != nil {
		log.Printf("firmware query failed, keeping legacy sentence schema: %s", err)
	} else if v == nmea.VersionExtended {
		fmt.Println("receiver speaks the extended (NMEA 4.1) sentence schema")
	}

	connPool := pool.New()
	if conf.Socket != "" {
		go connPool.Run()
		if err := startSocket(conf, connPool); err != nil {
			log.Fatal(err)
		}
		dev.SentenceHook = func(sentence string) {
			select {
			case connPool.Broadcast <- []byte(sentence):
			default:
			}
		}
	}

	var client mqtt.Client
	if conf.MQTTBroker != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(conf.MQTTBroker).
			SetClientID(conf.MQTTClientID)
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Fatal(token.Error())
		}
		fmt.Printf("connected to MQTT broker at %s, publishing to %q\n",
			conf.MQTTBroker, conf.MQTTTopic)
	}

	run(dev, conf, client)
}

// run pulls position sentences forever and publishes the fix state each time
// one arrives. Timeouts are a steady-state condition while the receiver
// searches for satellites, so they only get logged.
func run(dev *l76.Device, conf *config.Config, client mqtt.Client) {
	fixTimeout := time.Duration(conf.FixTimeout) * time.Second
	positionKinds := []nmea.Kind{nmea.KindGGA, nmea.KindRMC, nmea.KindGLL}

	wasFixed := false
	for {
		if _, err := dev.Message(positionKinds, fixTimeout); err != nil {
			log.Printf("no position sentence within %s", fixTimeout)
			continue
		}

		state := dev.Fix()
		if state.Fixed != wasFixed {
			if state.Fixed {
				fmt.Printf("fix acquired after %s\n", state.TimeToFirstFix)
			} else {
				fmt.Println("fix lost")
			}
			wasFixed = state.Fixed
		}

		if client == nil {
			continue
		}
		payload, err := json.Marshal(payloadFromState(state))
		if err != nil {
			log.Printf("marshal error: %s", err)
			continue
		}
		token := client.Publish(conf.MQTTTopic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("publish error: %s", token.Error())
		}
	}
}

func payloadFromState(state l76.FixState) fixPayload {
	p := fixPayload{
		Fixed:       state.Fixed,
		TTFFSeconds: state.TimeToFirstFix.Seconds(),
	}
	if state.HasPosition {
		p.Latitude = state.Latitude
		p.Longitude = state.Longitude
	}
	if !state.TimeOfFix.IsZero() {
		p.TimeOfFix = state.TimeOfFix.UTC().Format(time.RFC3339)
	}
	return p
}

func openTransport(conf *config.Config) (l76.Transport, func(), error) {
	switch conf.Transport {
	case "i2c":
		t, err := transport.OpenI2C(conf.I2CBus, uint16(conf.I2CAddr))
		if err != nil {
			return nil, nil, err
		}
		return t, func() { t.Close() }, nil
	default:
		t, err := transport.OpenSerial(conf.DevicePath, conf.BaudRate, time.Second)
		if err != nil {
			return nil, nil, err
		}
		return t, func() { t.Close() }, nil
	}
}

func startSocket(conf *config.Config, connPool *pool.Pool) error {
	if err := os.RemoveAll(conf.Socket); err != nil {
		return fmt.Errorf("startSocket(): %w", err)
	}

	sock, err := net.Listen("unix", conf.Socket)
	if err != nil {
		return fmt.Errorf("startSocket(): %w", err)
	}

	if err := os.Chmod(conf.Socket, 0660); err != nil {
		return fmt.Errorf("startSocket(): %w", err)
	}

	if conf.OwnerGroup != "" {
		group, err := user.LookupGroup(conf.OwnerGroup)
		if err != nil {
			return fmt.Errorf("startSocket(): %w", err)
		}
		gid, err := strconv.ParseInt(group.Gid, 10, 16)
		if err != nil {
			return fmt.Errorf("startSocket(): %w", err)
		}
		if err := os.Chown(conf.Socket, -1, int(gid)); err != nil {
			return fmt.Errorf("startSocket(): %w", err)
		}
	}

	fmt.Printf("sharing raw sentences at: %s\n", conf.Socket)
	go func() {
		for {
			conn, err := sock.Accept()
			if err != nil {
				log.Fatal(err)
			}

			client := pool.Client{
				Conn: conn,
				Send: make(chan []byte, 8),
			}
			connPool.Register <- &client

			go handleConnection(connPool, &client)
		}
	}()

	return nil
}

func handleConnection(p *pool.Pool, c *pool.Client) {
	defer func() {
		p.Unregister <- c
		c.Conn.Close()
	}()

	for {
		msg := <-c.Send
		if _, err := c.Conn.Write(msg); err != nil {
			return
		}
	}
}
