package flows

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dcbradley/netblast/models"
)

// DefaultBucket is the width of each summary row
const DefaultBucket = 30 * time.Second

type SummaryOptions struct {
	Bucket time.Duration
	// Empty means any address matches
	Sources      []netip.Prefix
	Destinations []netip.Prefix
}

// Bucket is the traffic attributed to one window, measured from the start of the earliest flow
type Bucket struct {
	Offset   time.Duration
	Duration time.Duration
	Bytes    decimal.Decimal
}

func (b Bucket) BitsPerSecond() decimal.Decimal {
	seconds := decimal.NewFromFloat(b.Duration.Seconds())
	if seconds.IsZero() {
		return decimal.Zero
	}
	return b.Bytes.Mul(decimal.NewFromInt(8)).Div(seconds)
}

// ParseAddressFilter accepts either a CIDR prefix or a single address
func ParseAddressFilter(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid address filter %q: %w", raw, err)
		}
		return prefix.Masked(), nil
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid address filter %q: %w", raw, err)
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Summarize spreads each matching flow's bytes evenly over its run and totals them per bucket.
// A flow contributes to a bucket in proportion to how much of the bucket it overlaps.
func Summarize(flows []*models.Flow, opts SummaryOptions) []Bucket {
	width := opts.Bucket
	if width <= 0 {
		width = DefaultBucket
	}

	var matched []*models.Flow
	for _, flow := range flows {
		if addressMatches(flow.SrcAddress, opts.Sources) && addressMatches(flow.DestAddress, opts.Destinations) {
			matched = append(matched, flow)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	origin := matched[0].StartedAt
	end := matched[0].EndedAt()
	for _, flow := range matched[1:] {
		if flow.StartedAt.Before(origin) {
			origin = flow.StartedAt
		}
		if flow.EndedAt().After(end) {
			end = flow.EndedAt()
		}
	}
	origin = origin.Truncate(time.Second)

	var buckets []Bucket
	for t := origin; t.Before(end); t = t.Add(width) {
		windowEnd := t.Add(width)
		total := decimal.Zero
		for _, flow := range matched {
			if flow.DurationSeconds <= 0 {
				continue
			}
			overlap := minTime(flow.EndedAt(), windowEnd).Sub(maxTime(flow.StartedAt, t))
			if overlap <= 0 {
				continue
			}
			share := decimal.NewFromInt(flow.Bytes).
				Mul(decimal.NewFromFloat(overlap.Seconds())).
				Div(decimal.NewFromFloat(flow.DurationSeconds))
			total = total.Add(share)
		}
		buckets = append(buckets, Bucket{Offset: t.Sub(origin), Duration: width, Bytes: total})
	}

	return buckets
}

// WriteCSV writes the t,bps,bytes,duration table, values rounded to whole units
func WriteCSV(w io.Writer, buckets []Bucket) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"t", "bps", "bytes", "duration"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, bucket := range buckets {
		row := []string{
			strconv.FormatInt(int64(bucket.Offset.Round(time.Second)/time.Second), 10),
			bucket.BitsPerSecond().Round(0).String(),
			bucket.Bytes.Round(0).String(),
			strconv.FormatInt(int64(bucket.Duration.Round(time.Second)/time.Second), 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func addressMatches(raw string, prefixes []netip.Prefix) bool {
	if len(prefixes) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
