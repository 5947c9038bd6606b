package main

import (
	"flag"
	"log"
	"os"
	"reflect"

	"github.com/robotalks/netapi/pkg/env"
	"github.com/robotalks/netapi/pkg/transport/mqtt"
	"github.com/robotalks/netapi/pkg/wire"
)

var (
	mqttURL = "mqtt://localhost:1883/netapi/"
	device  = "+"
)

func init() {
	if val := os.Getenv("MACD_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&device, "device", device, "Device name to monitor, + for all.")
}

func describe(msg wire.Message) string {
	switch m := msg.(type) {
	case *wire.Frame:
		return env.FormatAddress(m.Src) + " > " + env.FormatAddress(m.Dest) + " " + env.FormatAddress(m.Payload)
	case *wire.Transmit:
		return "> " + env.FormatAddress(m.Dest) + " " + env.FormatAddress(m.Payload)
	}
	return msg.String()
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.Connect(); err != nil {
		log.Fatalln(err)
	}

	handler := mqtt.Handler(func(topic string, payload []byte) {
		typed, err := wire.DecodeTyped(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		msg, err := typed.Decode()
		if err != nil {
			log.Printf("%s: decode error: (type_id=%x) %v", topic, typed.TypeId, err)
			return
		}
		log.Printf("%s: #%d [%s] %s", topic, typed.Sequence,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(), describe(msg))
	})
	q.Sub(device+mqtt.TopicMeta, func(topic string, payload []byte) {
		if len(payload) == 0 {
			log.Printf("%s: gone", topic)
		} else {
			log.Printf("%s: %s", topic, payload)
		}
	})
	q.Sub(device+mqtt.TopicRx, handler)
	q.Sub(device+mqtt.TopicTx, handler)
	<-(chan struct{})(nil)
}
