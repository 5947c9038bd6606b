// Package mac exposes the MAC task RPCs as shell commands.
package mac

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/netapi/pkg/cli/sh"
	"github.com/robotalks/netapi/pkg/env"
	"github.com/robotalks/netapi/pkg/netapi"
	"github.com/robotalks/netapi/pkg/netdev"
	"github.com/robotalks/netapi/pkg/netdev/loopback"
	"github.com/robotalks/netapi/pkg/pktbuf"
)

func parseUint(c *ishell.Context, name, s string, bits int) (uint64, bool) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		c.Err(fmt.Errorf("Invalid %s: %v", name, err))
		return 0, false
	}
	return v, true
}

func parseHex(c *ishell.Context, name, s string) ([]byte, bool) {
	data, err := hex.DecodeString(strings.Replace(s, ":", "", -1))
	if err != nil {
		c.Err(fmt.Errorf("Invalid %s: %v", name, err))
		return nil, false
	}
	return data, true
}

func parseAddr(c *ishell.Context, name, s string) ([]byte, bool) {
	addr, err := env.ParseAddress(s)
	if err != nil {
		c.Err(fmt.Errorf("Invalid %s: %v", name, err))
		return nil, false
	}
	return addr, true
}

// regArgs parses [PID [DEMUX]], PID defaulting to the monitor.
func regArgs(c *ishell.Context) (pid netapi.PID, demux uint32, ok bool) {
	pid = sh.ShellFrom(c).Monitor.PID()
	if len(c.Args) > 0 {
		v, ok := parseUint(c, "PID", c.Args[0], 16)
		if !ok {
			return 0, 0, false
		}
		pid = netapi.PID(v)
	}
	if len(c.Args) > 1 {
		v, ok := parseUint(c, "DEMUX", c.Args[1], 32)
		if !ok {
			return 0, 0, false
		}
		demux = uint32(v)
	}
	return pid, demux, true
}

func parseParam(c *ishell.Context, s string) (netdev.Param, bool) {
	if p, ok := netdev.ParseParam(s); ok {
		return p, true
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		c.Err(fmt.Errorf("Unknown PARAM: %s", s))
		return 0, false
	}
	return netdev.Param(v), true
}

type recipientInfo struct {
	PID   netapi.PID `json:"pid"`
	Name  string     `json:"name"`
	Demux uint32     `json:"demux"`
}

type arenaInfo struct {
	Capacity int `json:"capacity"`
	Free     int `json:"free"`
	Chunks   int `json:"chunks"`
}

var (
	// RecipientsCmd lists registered recipients.
	RecipientsCmd = ishell.Cmd{
		Name:    "recipients",
		Aliases: []string{"ls"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			out := make([]netapi.Recipient, s.Env.Registry.Capacity())
			ctx, cancel := s.CallContext()
			defer cancel()
			n, err := netapi.Recipients(ctx, s.Client, s.MAC(), out)
			if err != nil {
				c.Err(err)
				return
			}
			infos := make([]recipientInfo, n)
			for i, r := range out[:n] {
				infos[i] = recipientInfo{PID: r.PID, Demux: r.Demux}
				if t := s.Env.Table.Lookup(r.PID); t != nil {
					infos[i].Name = t.Name()
				}
			}
			sh.Print(c, infos, func() string {
				if n == 0 {
					return "No recipients"
				}
				lines := make([]string, n)
				for i, info := range infos {
					lines[i] = fmt.Sprintf("%d %s demux=%#x", info.PID, info.Name, info.Demux)
				}
				return strings.Join(lines, "\n")
			})
		},
	}

	// RegisterCmd registers a recipient.
	RegisterCmd = ishell.Cmd{
		Name:    "register",
		Aliases: []string{"reg"},
		Help:    "[PID] [DEMUX]",
		Func: func(c *ishell.Context) {
			pid, demux, ok := regArgs(c)
			if !ok {
				return
			}
			s := sh.ShellFrom(c)
			ctx, cancel := s.CallContext()
			defer cancel()
			if err := netapi.Register(ctx, s.Client, s.MAC(), pid, demux); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}

	// UnregisterCmd unregisters a recipient.
	UnregisterCmd = ishell.Cmd{
		Name:    "unregister",
		Aliases: []string{"unreg"},
		Help:    "[PID] [DEMUX]",
		Func: func(c *ishell.Context) {
			pid, demux, ok := regArgs(c)
			if !ok {
				return
			}
			s := sh.ShellFrom(c)
			ctx, cancel := s.CallContext()
			defer cancel()
			if err := netapi.Unregister(ctx, s.Client, s.MAC(), pid, demux); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}

	// SendCmd sends a frame through the MAC task.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"tx"},
		Help:    "DEST PAYLOAD(hex) [HEADER(hex)...]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("DEST and PAYLOAD required"))
				return
			}
			dest, ok := parseAddr(c, "DEST", c.Args[0])
			if !ok {
				return
			}
			payload, ok := parseHex(c, "PAYLOAD", c.Args[1])
			if !ok {
				return
			}
			s := sh.ShellFrom(c)
			pkt, err := pktbuf.New(s.Env.Arena, payload)
			if err != nil {
				c.Err(err)
				return
			}
			defer pkt.Release()
			// headers are given outermost first.
			for i := len(c.Args) - 1; i >= 2; i-- {
				h, ok := parseHex(c, "HEADER", c.Args[i])
				if !ok {
					return
				}
				if _, err = pkt.AddHeader(h); err != nil {
					c.Err(err)
					return
				}
			}
			ctx, cancel := s.CallContext()
			defer cancel()
			n, err := netapi.Send(ctx, s.Client, s.MAC(), dest, pkt)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%d bytes sent\n", n)
		},
	}

	// InjectCmd makes the loopback device receive a frame.
	InjectCmd = ishell.Cmd{
		Name:    "inject",
		Aliases: []string{"rx"},
		Help:    "SRC DEST PAYLOAD(hex)",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("SRC, DEST and PAYLOAD required"))
				return
			}
			dev, ok := sh.ShellFrom(c).Env.Device.(*loopback.Device)
			if !ok {
				c.Err(fmt.Errorf("inject requires the loopback device"))
				return
			}
			src, ok := parseAddr(c, "SRC", c.Args[0])
			if !ok {
				return
			}
			dest, ok := parseAddr(c, "DEST", c.Args[1])
			if !ok {
				return
			}
			payload, ok := parseHex(c, "PAYLOAD", c.Args[2])
			if !ok {
				return
			}
			dev.Inject(src, dest, payload)
		},
	}

	// GetOptCmd reads a device option.
	GetOptCmd = ishell.Cmd{
		Name:    "get",
		Aliases: []string{"g"},
		Help:    "PARAM",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("PARAM required"))
				return
			}
			p, ok := parseParam(c, c.Args[0])
			if !ok {
				return
			}
			s := sh.ShellFrom(c)
			ctx, cancel := s.CallContext()
			defer cancel()
			buf := make([]byte, netdev.MaxLongAddrLen)
			n, err := netapi.GetOption(ctx, s.Client, s.MAC(), uint16(p), buf)
			if err != nil {
				c.Err(err)
				return
			}
			value := buf[:n]
			sh.Print(c, map[string]string{p.String(): hex.EncodeToString(value)}, func() string {
				if p == netdev.ParamState && n == 1 {
					return netdev.State(value[0]).String()
				}
				if n == 2 && p != netdev.ParamAddress {
					return fmt.Sprintf("%d", netdev.AsUint16(value))
				}
				return env.FormatAddress(value)
			})
		},
	}

	// SetOptCmd writes a device option.
	SetOptCmd = ishell.Cmd{
		Name:    "set",
		Aliases: []string{"s"},
		Help:    "PARAM VALUE(hex, or a number for 16-bit params)",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("PARAM and VALUE required"))
				return
			}
			p, ok := parseParam(c, c.Args[0])
			if !ok {
				return
			}
			var value []byte
			switch p {
			case netdev.ParamAddress, netdev.ParamAddressLong:
				if value, ok = parseHex(c, "VALUE", c.Args[1]); !ok {
					return
				}
			case netdev.ParamState:
				v, ok := parseUint(c, "VALUE", c.Args[1], 8)
				if !ok {
					return
				}
				value = []byte{byte(v)}
			default:
				v, ok := parseUint(c, "VALUE", c.Args[1], 16)
				if !ok {
					return
				}
				value = netdev.Uint16(uint16(v))
			}
			s := sh.ShellFrom(c)
			ctx, cancel := s.CallContext()
			defer cancel()
			if err := netapi.SetOption(ctx, s.Client, s.MAC(), uint16(p), value); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}

	// ConsumeCmd sets what the monitor acknowledges.
	ConsumeCmd = ishell.Cmd{
		Name: "consume",
		Help: "all|N",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("all or N required"))
				return
			}
			m := sh.ShellFrom(c).Monitor
			if c.Args[0] == "all" {
				m.SetConsume(sh.ConsumeAll)
				return
			}
			n, err := strconv.Atoi(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid N: %v", err))
				return
			}
			m.SetConsume(n)
		},
	}

	// ArenaCmd prints arena usage.
	ArenaCmd = ishell.Cmd{
		Name: "arena",
		Help: "",
		Func: func(c *ishell.Context) {
			a := sh.ShellFrom(c).Env.Arena
			info := arenaInfo{Capacity: a.Capacity(), Free: a.Free(), Chunks: a.InUse()}
			sh.Print(c, info, func() string {
				return fmt.Sprintf("capacity=%d free=%d chunks=%d", info.Capacity, info.Free, info.Chunks)
			})
		},
	}
)

func init() {
	sh.AddCmds(
		&RecipientsCmd,
		&RegisterCmd,
		&UnregisterCmd,
		&SendCmd,
		&InjectCmd,
		&GetOptCmd,
		&SetOptCmd,
		&ConsumeCmd,
		&ArenaCmd,
	)
}
