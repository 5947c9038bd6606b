package env

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/arena"
	"github.com/robotalks/netapi/pkg/bridge"
	"github.com/robotalks/netapi/pkg/framework"
	"github.com/robotalks/netapi/pkg/mac"
	"github.com/robotalks/netapi/pkg/netapi"
	"github.com/robotalks/netapi/pkg/netdev"
	"github.com/robotalks/netapi/pkg/transport"
	"github.com/robotalks/netapi/pkg/transport/mqtt"
	"github.com/robotalks/netapi/pkg/transport/stream"
	"github.com/robotalks/netapi/pkg/transport/websocket"
)

// DeviceMeta is published on the meta topic of a device.
type DeviceMeta struct {
	Name         string `json:"name"`
	Driver       string `json:"driver"`
	ShortAddress string `json:"short_address,omitempty"`
	LongAddress  string `json:"long_address,omitempty"`
}

// Env is a node: one device served by one MAC task, plus the bridges
// exposing it.
type Env struct {
	Config   *Config
	Table    *netapi.Table
	Arena    *arena.Arena
	Registry *mac.Registry
	Device   netdev.Driver
	MAC      *mac.Task

	runnables []framework.Runnable
	listeners []net.Listener
}

// NewEnv creates Env from config. Listeners are opened here so that
// address errors surface before anything runs.
func (c *Config) NewEnv() (*Env, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("device name must be specified")
	}
	if c.ArenaSize <= 0 || c.RegistrySize <= 0 {
		return nil, fmt.Errorf("arena and registry sizes must be positive")
	}
	dev, err := c.NewDevice()
	if err != nil {
		return nil, err
	}
	env := &Env{
		Config:   c,
		Table:    netapi.NewTable(),
		Arena:    arena.New(c.ArenaSize),
		Registry: mac.NewRegistry(c.RegistrySize),
		Device:   dev,
	}
	env.Registry.Dedup = c.Dedup
	env.MAC = mac.New(env.Table, c.Name, dev, env.Registry)
	env.runnables = append(env.runnables, env.MAC)
	if runnable, ok := dev.(framework.Runnable); ok {
		env.runnables = append(env.runnables, runnable)
	}

	if c.MQTTBrokerURL != "" {
		a, err := mqtt.NewAnnouncer(c.MQTTBrokerURL, c.Name, env.Meta())
		if err != nil {
			return nil, fmt.Errorf("create MQTT queue error: %v", err)
		}
		if err = a.Queue.Connect(); err != nil {
			return nil, fmt.Errorf("connect MQTT broker error: %v", err)
		}
		rw := mqtt.NewPacketReadWriter(a.Queue).ForDevice(c.Name)
		env.runnables = append(env.runnables, a, rw, env.NewBridge(rw))
	}
	if c.StreamAddr != "" {
		ln, err := net.Listen("tcp", c.StreamAddr)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.listeners = append(env.listeners, ln)
		env.runnables = append(env.runnables, framework.NamedRun("stream", &streamServer{env: env, ln: ln}))
	}
	if c.WebSocketAddr != "" {
		ln, err := net.Listen("tcp", c.WebSocketAddr)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.listeners = append(env.listeners, ln)
		env.runnables = append(env.runnables, framework.NamedRun("websocket", &wsServer{env: env, ln: ln}))
	}
	return env, nil
}

// Meta describes the device for discovery.
func (e *Env) Meta() *DeviceMeta {
	meta := &DeviceMeta{Name: e.Config.Name, Driver: e.Config.Device}
	buf := make([]byte, netdev.MaxLongAddrLen)
	if n, err := e.Device.GetOption(netdev.ParamAddress, buf); err == nil {
		meta.ShortAddress = FormatAddress(buf[:n])
	}
	if n, err := e.Device.GetOption(netdev.ParamAddressLong, buf); err == nil {
		meta.LongAddress = FormatAddress(buf[:n])
	}
	return meta
}

// NewBridge creates a bridge between the MAC task and rw.
func (e *Env) NewBridge(rw transport.PacketReadWriter) *bridge.Bridge {
	b := bridge.New(e.Table, e.Config.Name+".bridge", e.MAC.PID(), e.Arena, rw)
	b.Device = e.Config.Name
	return b
}

// Runnables returns what must run for the node to work.
func (e *Env) Runnables() []framework.Runnable {
	return e.runnables
}

// Addrs returns the addresses the servers listen on.
func (e *Env) Addrs() []net.Addr {
	addrs := make([]net.Addr, len(e.listeners))
	for n, ln := range e.listeners {
		addrs[n] = ln.Addr()
	}
	return addrs
}

// Close closes the listeners of servers that never ran.
func (e *Env) Close() error {
	var errs framework.AggregatedError
	for _, ln := range e.listeners {
		errs.Add(ln.Close())
	}
	return errs.Aggregate()
}

// Run runs everything until ctx is done or any part stops.
func (e *Env) Run(ctx context.Context) error {
	runner := framework.NewRunnerWith(ctx)
	runner.StopOnExit = true
	return runner.Go(e.runnables...).Wait()
}

// bridgeGroup runs a bridge per accepted connection.
type bridgeGroup struct {
	env *Env
	wg  sync.WaitGroup
}

func (g *bridgeGroup) run(ctx context.Context, rw transport.PacketReadWriter) {
	defer g.wg.Done()
	b := g.env.NewBridge(rw)
	if err := b.Run(ctx); err != nil && err != context.Canceled {
		glog.V(1).Infof("bridge %s stopped: %v", b.Name(), err)
	}
}

type streamServer struct {
	env *Env
	ln  net.Listener
}

func (s *streamServer) Run(ctx context.Context) error {
	glog.Infof("stream: listening on %s", s.ln.Addr())
	g := &bridgeGroup{env: s.env}
	defer g.wg.Wait()
	return framework.RunWithContextCloser(ctx, s.ln, func() error {
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				return err
			}
			glog.V(1).Infof("stream: connection from %s", conn.RemoteAddr())
			g.wg.Add(1)
			go g.run(ctx, stream.New(conn))
		}
	})
}

type wsServer struct {
	env *Env
	ln  net.Listener
}

func (s *wsServer) Run(ctx context.Context) error {
	glog.Infof("websocket: listening on %s", s.ln.Addr())
	g := &bridgeGroup{env: s.env}
	defer g.wg.Wait()
	srv := &http.Server{Handler: websocket.Handler(func(rw *websocket.ReadWriter) {
		g.wg.Add(1)
		g.run(ctx, rw)
	})}
	return framework.RunWithContextCloser(ctx, srv, func() error {
		return srv.Serve(s.ln)
	})
}
