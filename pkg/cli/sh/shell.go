// Package sh provides an interactive shell driving an in-process node.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/netapi/pkg/env"
	"github.com/robotalks/netapi/pkg/framework"
	"github.com/robotalks/netapi/pkg/netapi"
)

// CallTimeout bounds every RPC issued from the shell.
const CallTimeout = time.Second

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Env     *env.Env
	Client  *netapi.Task
	Monitor *Monitor

	ctx    context.Context
	runner *framework.Runner
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	commands []*ishell.Cmd
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell over the node created from conf.
func New(conf *env.Config) (*Shell, error) {
	node, err := conf.NewEnv()
	if err != nil {
		return nil, err
	}
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Env:    node,
		Client: node.Table.Spawn("shell", 1),
	}
	s.Monitor = NewMonitor(node.Table, s.Shell)
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(conf.Name + " > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s, nil
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MAC returns the PID of the MAC task.
func (s *Shell) MAC() netapi.PID {
	return s.Env.MAC.PID()
}

// CallContext returns a context for one RPC.
func (s *Shell) CallContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, CallTimeout)
}

// Print writes v as JSON when OutputJSON is set, otherwise using text.
func Print(c *ishell.Context, v interface{}, text func() string) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text())
}

// Start runs the node and the monitor in the background.
func (s *Shell) Start(ctx context.Context) {
	s.runner = framework.NewRunnerWith(ctx)
	s.ctx = s.runner.Context
	s.runner.Go(s.Env.Runnables()...)
	s.runner.Go(s.Monitor)
}

// Stop stops the node and waits for it.
func (s *Shell) Stop() error {
	s.runner.Stop()
	return s.runner.Wait()
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	s.Start(context.Background())
	defer s.Stop()
	ctx, cancel := s.CallContext()
	err := netapi.Register(ctx, s.Client, s.MAC(), s.Monitor.PID(), 0)
	cancel()
	if err != nil {
		log.Fatalf("register monitor failed: %v", err)
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Printf("%s: mac pid %d, monitor pid %d\n", s.Env.Config.Name, s.MAC(), s.Monitor.PID())
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	s, err := New(env.NewConfig())
	if err != nil {
		log.Fatalln(err)
	}
	s.Run(flag.Args()...)
}
