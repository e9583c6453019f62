package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/lucasepe/codename"

	brokerclient "github.com/dcbradley/netblast/clients/broker"
	"github.com/dcbradley/netblast/core/log"
)

// SwarmCommand registers a fleet of simulated workers and drives them through
// pairing rounds. Clients report a synthetic flow instead of running iperf.
type SwarmCommand struct {
	global *GlobalOptions

	Workers     int           `long:"workers" default:"10" description:"Number of simulated workers"`
	Servers     int           `long:"servers" default:"5" description:"How many of them offer a server port"`
	Rounds      int           `long:"rounds" default:"3" description:"Pairing rounds to run"`
	BasePort    int           `long:"base-port" default:"5201" description:"First server port handed out"`
	IP4         string        `long:"ip4" description:"Address the simulated servers advertise"`
	Concurrency int           `long:"concurrency" default:"8" description:"Requests in flight at once"`
	Duration    time.Duration `long:"duration" default:"10s" description:"Length of each synthetic run"`
}

type swarmWorker struct {
	hostname string
	port     int
	id       string
	cookie   string
}

type swarmStats struct {
	registered atomic.Int64
	paired     atomic.Int64
	unpaired   atomic.Int64
	serving    atomic.Int64
	reported   atomic.Int64
	failed     atomic.Int64
}

func (c *SwarmCommand) Execute(_ []string) error {
	if c.Workers <= 0 || c.Concurrency <= 0 {
		return errors.New("--workers and --concurrency must be positive")
	}
	if c.Servers < 0 || c.Servers > c.Workers {
		return fmt.Errorf("--servers must be between 0 and %d", c.Workers)
	}

	workers, err := c.newWorkers()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	client := c.global.client()
	stats := &swarmStats{}

	c.runPool(workers, func(w *swarmWorker) {
		resp, err := client.Register(ctx, brokerclient.RegisterRequest{
			Hostname:   w.hostname,
			IP4:        c.IP4,
			ServerPort: w.port,
		})
		if err != nil {
			stats.failed.Add(1)
			log.Error("register failed", "hostname", w.hostname, "error", err)
			return
		}
		w.id, w.cookie = resp.WorkerID, resp.Cookie
		stats.registered.Add(1)
	})

	for round := 1; round <= c.Rounds && ctx.Err() == nil; round++ {
		log.Info("starting round", "round", round)
		servers, clients := splitByRole(workers)

		// Servers poll first so their liveness is fresh before clients claim them.
		c.runPool(servers, func(w *swarmWorker) {
			if _, err := client.GetWork(ctx, w.id, w.cookie, "server"); err != nil {
				stats.failed.Add(1)
				log.Error("server poll failed", "worker", w.id, "error", err)
				return
			}
			stats.serving.Add(1)
		})
		c.runPool(clients, func(w *swarmWorker) {
			c.runClient(ctx, client, w, stats)
		})
	}

	c.runPool(workers, func(w *swarmWorker) {
		if w.id == "" {
			return
		}
		if err := client.Close(context.Background(), w.id, w.cookie); err != nil {
			log.Warn("close failed", "worker", w.id, "error", err)
		}
	})

	fmt.Printf("registered=%d serving=%d paired=%d unpaired=%d reported=%d failed=%d\n",
		stats.registered.Load(), stats.serving.Load(), stats.paired.Load(),
		stats.unpaired.Load(), stats.reported.Load(), stats.failed.Load())
	return ctx.Err()
}

func (c *SwarmCommand) runClient(ctx context.Context, client *brokerclient.Client, w *swarmWorker, stats *swarmStats) {
	work, err := client.GetWork(ctx, w.id, w.cookie, "client")
	if errors.Is(err, brokerclient.ErrNoServerAvailable) {
		stats.unpaired.Add(1)
		return
	}
	if err != nil {
		stats.failed.Add(1)
		log.Error("client poll failed", "worker", w.id, "error", err)
		return
	}
	stats.paired.Add(1)
	log.Debug("paired", "worker", w.id, "args", work.Args)

	start := time.Now().Add(-c.Duration)
	sent := int64(c.Duration.Seconds() * 1e9 / 8)
	if _, err := client.ReportFlow(ctx, w.id, w.cookie, start, c.Duration, sent); err != nil {
		stats.failed.Add(1)
		log.Error("report failed", "worker", w.id, "error", err)
		return
	}
	stats.reported.Add(1)
}

// newWorkers names every simulated worker up front; the codename source is not safe for concurrent use
func (c *SwarmCommand) newWorkers() ([]*swarmWorker, error) {
	rng, err := codename.DefaultRNG()
	if err != nil {
		return nil, fmt.Errorf("failed to seed name generator: %w", err)
	}

	workers := make([]*swarmWorker, c.Workers)
	for i := range workers {
		workers[i] = &swarmWorker{hostname: fmt.Sprintf("%s-%d", codename.Generate(rng, 0), i)}
		if i < c.Servers {
			workers[i].port = c.BasePort + i
		}
	}
	return workers, nil
}

func (c *SwarmCommand) runPool(workers []*swarmWorker, fn func(w *swarmWorker)) {
	wp := workerpool.New(c.Concurrency)
	for _, w := range workers {
		wp.Submit(func() { fn(w) })
	}
	wp.StopWait()
}

func splitByRole(workers []*swarmWorker) (servers, clients []*swarmWorker) {
	for _, w := range workers {
		if w.id == "" {
			continue
		}
		if w.port > 0 {
			servers = append(servers, w)
		} else {
			clients = append(clients, w)
		}
	}
	return servers, clients
}
