package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/dcbradley/netblast/config"
	"github.com/dcbradley/netblast/core"
	"github.com/dcbradley/netblast/db"
	"github.com/dcbradley/netblast/services/flows"
)

type Options struct {
	DatabaseDriver string        `long:"db-driver" env:"DB_DRIVER" default:"postgres" choice:"postgres" choice:"sqlite" description:"Database driver"`
	DatabaseURL    string        `long:"db-url" env:"DB_URL" required:"true" description:"Database connection string"`
	DatabaseSchema string        `long:"db-schema" env:"DB_SCHEMA" description:"Schema holding the flows table"`
	Sources        []string      `long:"src" description:"Only count flows from this address or CIDR (repeatable)"`
	Destinations   []string      `long:"dest" description:"Only count flows to this address or CIDR (repeatable)"`
	Bucket         time.Duration `long:"bucket" default:"30s" description:"Width of each output row"`
	From           string        `long:"from" description:"Earliest flow start, RFC 3339"`
	To             string        `long:"to" description:"Latest flow start (exclusive), RFC 3339"`
	Output         string        `short:"o" long:"output" description:"CSV destination (default stdout)"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}

func run(opts Options) error {
	summaryOpts, err := opts.summaryOptions()
	if err != nil {
		return err
	}
	from, to, err := opts.window()
	if err != nil {
		return err
	}

	schema := opts.DatabaseSchema
	if schema == "" {
		schema = "public"
		if opts.DatabaseDriver == config.DriverSQLite {
			schema = "main"
		}
	}

	dbConn, err := db.NewConnection(opts.DatabaseDriver, opts.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	flowsService := flows.NewFlowsService(db.NewSQLFlowsRepository(dbConn, schema), core.Now)
	recorded, err := flowsService.GetFlowsStartedBetween(context.Background(), from, to)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.Output, err)
		}
		defer f.Close()
		out = f
	}

	buckets := flows.Summarize(recorded, summaryOpts)
	log.Printf("📋 Summarized %d flows into %d buckets", len(recorded), len(buckets))
	return flows.WriteCSV(out, buckets)
}

func (o Options) summaryOptions() (flows.SummaryOptions, error) {
	if o.Bucket <= 0 {
		return flows.SummaryOptions{}, fmt.Errorf("--bucket must be positive, got %s", o.Bucket)
	}
	summaryOpts := flows.SummaryOptions{Bucket: o.Bucket}
	for _, raw := range o.Sources {
		prefix, err := flows.ParseAddressFilter(raw)
		if err != nil {
			return flows.SummaryOptions{}, fmt.Errorf("--src: %w", err)
		}
		summaryOpts.Sources = append(summaryOpts.Sources, prefix)
	}
	for _, raw := range o.Destinations {
		prefix, err := flows.ParseAddressFilter(raw)
		if err != nil {
			return flows.SummaryOptions{}, fmt.Errorf("--dest: %w", err)
		}
		summaryOpts.Destinations = append(summaryOpts.Destinations, prefix)
	}
	return summaryOpts, nil
}

// window defaults to every flow ever recorded
func (o Options) window() (time.Time, time.Time, error) {
	from := time.Unix(0, 0).UTC()
	to := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

	if o.From != "" {
		parsed, err := time.Parse(time.RFC3339, o.From)
		if err != nil {
			return from, to, fmt.Errorf("--from: %w", err)
		}
		from = parsed.UTC()
	}
	if o.To != "" {
		parsed, err := time.Parse(time.RFC3339, o.To)
		if err != nil {
			return from, to, fmt.Errorf("--to: %w", err)
		}
		to = parsed.UTC()
	}
	if !from.Before(to) {
		return from, to, fmt.Errorf("--from %s is not before --to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return from, to, nil
}
