package env

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/arena"
	"github.com/robotalks/netapi/pkg/mac"
	"github.com/robotalks/netapi/pkg/netdev"
	"github.com/robotalks/netapi/pkg/netdev/loopback"
	"github.com/robotalks/netapi/pkg/netdev/serial"
	"github.com/robotalks/netapi/pkg/transport"
	"github.com/robotalks/netapi/pkg/transport/stream"
	"github.com/robotalks/netapi/pkg/transport/websocket"
)

// DeviceLoopback selects the loopback driver.
const DeviceLoopback = "loopback"

// Config provides the options of a node.
type Config struct {
	// Name names the MAC task and the device on transports.
	Name string
	// Device selects the driver: "loopback", or the serial driver over
	// tcp://host:port, ws://host:port/path or a device file path.
	Device string
	// ShortAddress and LongAddress in hex, derived from the machine id
	// when empty.
	ShortAddress string
	LongAddress  string

	RegistrySize int
	Dedup        bool
	ArenaSize    int

	// MQTTBrokerURL bridges the device to MQTT topics.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// WebSocketAddr serves bridges over websocket, e.g. :8080.
	WebSocketAddr string
	// StreamAddr serves bridges over TCP streams, e.g. :7010.
	StreamAddr string
}

var defaultConfig = Config{
	Name:         "mac0",
	Device:       DeviceLoopback,
	RegistrySize: mac.MaxRegistryEntries,
	ArenaSize:    arena.DefaultCapacity,
}

func init() {
	envStr := func(name string, v *string) {
		if val := os.Getenv(name); val != "" {
			*v = val
		}
	}
	envStr("MACD_NAME", &defaultConfig.Name)
	envStr("MACD_DEVICE", &defaultConfig.Device)
	envStr("MACD_SHORT_ADDR", &defaultConfig.ShortAddress)
	envStr("MACD_LONG_ADDR", &defaultConfig.LongAddress)
	envStr("MACD_MQTT_URL", &defaultConfig.MQTTBrokerURL)
	envStr("MACD_WS_ADDR", &defaultConfig.WebSocketAddr)
	envStr("MACD_STREAM_ADDR", &defaultConfig.StreamAddr)
	if val, err := strconv.Atoi(os.Getenv("MACD_REGISTRY_SIZE")); err == nil {
		defaultConfig.RegistrySize = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Name, "name", defaultConfig.Name, "Device name")
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Device: loopback, tcp://HOST:PORT, ws://HOST:PORT/PATH or a device file")
	flag.StringVar(&defaultConfig.ShortAddress, "short-addr", defaultConfig.ShortAddress, "Short address in hex")
	flag.StringVar(&defaultConfig.LongAddress, "long-addr", defaultConfig.LongAddress, "Long address in hex")
	flag.IntVar(&defaultConfig.RegistrySize, "registry-size", defaultConfig.RegistrySize, "Registry capacity")
	flag.BoolVar(&defaultConfig.Dedup, "dedup", defaultConfig.Dedup, "Ignore duplicated registrations")
	flag.IntVar(&defaultConfig.ArenaSize, "arena-size", defaultConfig.ArenaSize, "Packet arena capacity in bytes")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.WebSocketAddr, "ws", defaultConfig.WebSocketAddr, "Websocket listen address")
	flag.StringVar(&defaultConfig.StreamAddr, "stream", defaultConfig.StreamAddr, "TCP stream listen address")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Addresses returns the configured or derived device addresses.
func (c *Config) Addresses() (short, long []byte, err error) {
	if c.LongAddress != "" {
		if long, err = ParseAddress(c.LongAddress); err != nil {
			return
		}
		if len(long) != netdev.MaxLongAddrLen {
			return nil, nil, fmt.Errorf("long address %q must have %d bytes", c.LongAddress, netdev.MaxLongAddrLen)
		}
	} else {
		long = LongAddressFrom(MachineID())
	}
	if c.ShortAddress != "" {
		if short, err = ParseAddress(c.ShortAddress); err != nil {
			return
		}
		if len(short) != netdev.MaxShortAddrLen {
			return nil, nil, fmt.Errorf("short address %q must have %d bytes", c.ShortAddress, netdev.MaxShortAddrLen)
		}
	} else {
		short = ShortAddressFrom(long)
	}
	return
}

// DialDevice opens the transport the serial driver runs over.
func (c *Config) DialDevice() (transport.PacketReadWriter, error) {
	u, err := url.Parse(c.Device)
	if err != nil {
		return nil, fmt.Errorf("invalid device %q: %v", c.Device, err)
	}
	switch u.Scheme {
	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return stream.New(conn), nil
	case "ws", "wss":
		return websocket.Dial(c.Device)
	case "":
		f, err := os.OpenFile(c.Device, os.O_RDWR, 0)
		if err != nil {
			return nil, err
		}
		return stream.New(f), nil
	default:
		return nil, fmt.Errorf("unknown device scheme: %q", u.Scheme)
	}
}

// NewDevice creates the driver. The serial driver is also returned as a
// framework.Runnable through Env.
func (c *Config) NewDevice() (netdev.Driver, error) {
	short, long, err := c.Addresses()
	if err != nil {
		return nil, err
	}
	glog.Infof("device %s: %s short=%s long=%s", c.Name, c.Device, FormatAddress(short), FormatAddress(long))
	if c.Device == DeviceLoopback {
		return loopback.New(short, long), nil
	}
	rw, err := c.DialDevice()
	if err != nil {
		return nil, fmt.Errorf("open device error: %v", err)
	}
	return serial.New(rw, short, long), nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}
