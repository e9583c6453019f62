package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	brokerclient "github.com/dcbradley/netblast/clients/broker"
	"github.com/dcbradley/netblast/core/log"
)

type GlobalOptions struct {
	BrokerURL string `long:"url" env:"NETBLAST_URL" default:"http://localhost:8080" description:"Broker base URL"`
	StatePath string `long:"state" env:"NETBLAST_STATE" description:"Credential file (default ~/.netblast/worker.json)"`
	Verbose   bool   `short:"v" long:"verbose" description:"Log requests to stderr"`
}

func (o *GlobalOptions) client() *brokerclient.Client {
	return brokerclient.NewClient(o.BrokerURL, nil)
}

func (o *GlobalOptions) stateFile() *StateFile {
	if o.StatePath == "" {
		return NewStateFile(defaultStatePath())
	}
	return NewStateFile(o.StatePath)
}

// registeredWorker loads the saved credential or explains how to get one
func (o *GlobalOptions) registeredWorker() (*WorkerState, error) {
	maybeState, err := o.stateFile().Load()
	if err != nil {
		return nil, err
	}
	state, ok := maybeState.Get()
	if !ok {
		return nil, errors.New("no registered worker, run `netblastctl register` first")
	}
	return state, nil
}

type RegisterCommand struct {
	global *GlobalOptions

	Hostname   string `long:"hostname" description:"Name to register under (default: this host's name)"`
	IP4        string `long:"ip4" description:"IPv4 address servers should be reached on"`
	IP6        string `long:"ip6" description:"IPv6 address servers should be reached on"`
	ServerPort int    `long:"server-port" description:"Port this worker listens on as an iperf server"`
}

func (c *RegisterCommand) Execute(_ []string) error {
	hostname := c.Hostname
	if hostname == "" {
		name, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to determine hostname: %w", err)
		}
		hostname = name
	}

	ctx, cancel := commandContext()
	defer cancel()

	log.Info("registering worker", "hostname", hostname, "broker", c.global.BrokerURL)
	resp, err := c.global.client().Register(ctx, brokerclient.RegisterRequest{
		Hostname:   hostname,
		IP4:        c.IP4,
		IP6:        c.IP6,
		ServerPort: c.ServerPort,
	})
	if err != nil {
		return err
	}

	state := &WorkerState{
		BrokerURL:    c.global.BrokerURL,
		WorkerID:     resp.WorkerID,
		Cookie:       resp.Cookie,
		Hostname:     hostname,
		RegisteredAt: time.Now().UTC(),
	}
	if err := c.global.stateFile().Save(state); err != nil {
		return err
	}
	return printJSON(resp)
}

type GetWorkCommand struct {
	global *GlobalOptions

	Mode string `long:"mode" choice:"client" choice:"server" description:"Role to ask for (default: any)"`
}

func (c *GetWorkCommand) Execute(_ []string) error {
	state, err := c.global.registeredWorker()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	resp, err := c.global.client().GetWork(ctx, state.WorkerID, state.Cookie, c.Mode)
	if errors.Is(err, brokerclient.ErrNoServerAvailable) {
		fmt.Println("no server available, try again later")
		return nil
	}
	if err != nil {
		return err
	}
	return printJSON(resp)
}

type KeepAliveCommand struct {
	global *GlobalOptions
}

func (c *KeepAliveCommand) Execute(_ []string) error {
	state, err := c.global.registeredWorker()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	return c.global.client().KeepAlive(ctx, state.WorkerID, state.Cookie)
}

type ReportCommand struct {
	global *GlobalOptions

	Start    float64       `long:"start" required:"true" description:"Run start as unix seconds"`
	Duration time.Duration `long:"duration" required:"true" description:"Run length, e.g. 60s"`
	Bytes    int64         `long:"bytes" required:"true" description:"Bytes transferred"`
}

func (c *ReportCommand) Execute(_ []string) error {
	state, err := c.global.registeredWorker()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	start := time.Unix(0, int64(c.Start*float64(time.Second)))
	flowID, err := c.global.client().ReportFlow(ctx, state.WorkerID, state.Cookie, start, c.Duration, c.Bytes)
	if err != nil {
		return err
	}
	fmt.Println(flowID)
	return nil
}

type CloseCommand struct {
	global *GlobalOptions
}

func (c *CloseCommand) Execute(_ []string) error {
	state, err := c.global.registeredWorker()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	if err := c.global.client().Close(ctx, state.WorkerID, state.Cookie); err != nil {
		return err
	}
	return c.global.stateFile().Remove()
}

func main() {
	var opts GlobalOptions
	parser := flags.NewParser(&opts, flags.Default)
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if opts.Verbose {
			log.SetLevel(slog.LevelDebug)
		}
		if command == nil {
			return nil
		}
		return command.Execute(args)
	}

	commands := []struct {
		name, short string
		data        any
	}{
		{"register", "Register this host as a worker", &RegisterCommand{global: &opts}},
		{"get-work", "Ask the broker for a role", &GetWorkCommand{global: &opts}},
		{"keep-alive", "Refresh this worker's liveness", &KeepAliveCommand{global: &opts}},
		{"report", "Report a finished run", &ReportCommand{global: &opts}},
		{"close", "Deregister this worker", &CloseCommand{global: &opts}},
		{"swarm", "Simulate many workers against the broker", &SwarmCommand{global: &opts}},
	}
	for _, cmd := range commands {
		if _, err := parser.AddCommand(cmd.name, cmd.short, "", cmd.data); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// flags.Default already printed the error
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
