package flows

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcbradley/netblast/models"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testFlow(src, dest string, startOffset time.Duration, seconds float64, sent int64) *models.Flow {
	return &models.Flow{
		SrcAddress:      src,
		DestAddress:     dest,
		DestPort:        5001,
		StartedAt:       t0.Add(startOffset),
		DurationSeconds: seconds,
		Bytes:           sent,
	}
}

func assertBytes(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.NewFromInt(want).Equal(got), "want %d bytes, got %s", want, got)
}

func TestSummarize_SpreadsBytesAcrossBuckets(t *testing.T) {
	flows := []*models.Flow{
		testFlow("10.0.0.1", "10.0.1.1", 0, 60, 6000),
		testFlow("10.0.0.2", "10.0.1.2", 15*time.Second, 30, 3000),
	}

	buckets := Summarize(flows, SummaryOptions{})
	require.Len(t, buckets, 2)

	assert.Equal(t, time.Duration(0), buckets[0].Offset)
	assert.Equal(t, 30*time.Second, buckets[1].Offset)
	assertBytes(t, 4500, buckets[0].Bytes)
	assertBytes(t, 4500, buckets[1].Bytes)
	assert.True(t, decimal.NewFromInt(1200).Equal(buckets[0].BitsPerSecond()))
}

func TestSummarize_Filters(t *testing.T) {
	flows := []*models.Flow{
		testFlow("10.0.0.1", "192.168.1.1", 0, 30, 3000),
		testFlow("10.9.0.1", "192.168.1.1", 0, 30, 6000),
		testFlow("10.0.0.2", "172.16.0.1", 0, 30, 9000),
		testFlow("not-an-ip", "192.168.1.1", 0, 30, 12000),
	}

	tests := []struct {
		name  string
		opts  SummaryOptions
		bytes int64
	}{
		{name: "no filters", opts: SummaryOptions{}, bytes: 30000},
		{
			name:  "source prefix",
			opts:  SummaryOptions{Sources: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/16")}},
			bytes: 12000,
		},
		{
			name: "source and destination",
			opts: SummaryOptions{
				Sources:      []netip.Prefix{netip.MustParsePrefix("10.0.0.0/16")},
				Destinations: []netip.Prefix{netip.MustParsePrefix("192.168.0.0/16")},
			},
			bytes: 3000,
		},
		{
			name:  "single address destination",
			opts:  SummaryOptions{Destinations: []netip.Prefix{netip.MustParsePrefix("172.16.0.1/32")}},
			bytes: 9000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets := Summarize(flows, tt.opts)
			require.Len(t, buckets, 1)
			assertBytes(t, tt.bytes, buckets[0].Bytes)
		})
	}

	t.Run("nothing matches", func(t *testing.T) {
		opts := SummaryOptions{Sources: []netip.Prefix{netip.MustParsePrefix("8.8.8.8/32")}}
		assert.Empty(t, Summarize(flows, opts))
	})
}

func TestSummarize_CustomBucketAndZeroDuration(t *testing.T) {
	flows := []*models.Flow{
		testFlow("10.0.0.1", "10.0.1.1", 0, 20, 2000),
		testFlow("10.0.0.1", "10.0.1.1", 5*time.Second, 0, 999),
	}

	buckets := Summarize(flows, SummaryOptions{Bucket: 10 * time.Second})
	require.Len(t, buckets, 2)
	assertBytes(t, 1000, buckets[0].Bytes)
	assertBytes(t, 1000, buckets[1].Bytes)
	assert.Equal(t, 10*time.Second, buckets[1].Duration)
}

func TestParseAddressFilter(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "10.0.0.0/8", want: "10.0.0.0/8"},
		{raw: "10.1.2.3/8", want: "10.0.0.0/8"},
		{raw: "10.1.2.3", want: "10.1.2.3/32"},
		{raw: "2001:db8::1", want: "2001:db8::1/128"},
		{raw: "nope", wantErr: true},
		{raw: "10.0.0.0/99", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			prefix, err := ParseAddressFilter(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, prefix.String())
		})
	}
}

func TestWriteCSV(t *testing.T) {
	buckets := Summarize([]*models.Flow{testFlow("10.0.0.1", "10.0.1.1", 0, 60, 6000)}, SummaryOptions{})

	var out bytes.Buffer
	require.NoError(t, WriteCSV(&out, buckets))
	assert.Equal(t, "t,bps,bytes,duration\n0,800,3000,30\n30,800,3000,30\n", out.String())

	out.Reset()
	require.NoError(t, WriteCSV(&out, nil))
	assert.Equal(t, "t,bps,bytes,duration\n", out.String())
}
