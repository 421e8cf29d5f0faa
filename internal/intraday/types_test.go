package intraday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOHLCVBar_Validate(t *testing.T) {
	ts := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		bar     OHLCVBar
		wantErr bool
	}{
		{
			name: "valid bar",
			bar:  OHLCVBar{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		},
		{
			name: "flat bar",
			bar:  OHLCVBar{Timestamp: ts, Open: 100, High: 100, Low: 100, Close: 100, Volume: 0},
		},
		{
			name:    "zero timestamp",
			bar:     OHLCVBar{Open: 100, High: 101, Low: 99, Close: 100, Volume: 10},
			wantErr: true,
		},
		{
			name:    "negative volume",
			bar:     OHLCVBar{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100, Volume: -5},
			wantErr: true,
		},
		{
			name:    "open above high",
			bar:     OHLCVBar{Timestamp: ts, Open: 102, High: 101, Low: 99, Close: 100, Volume: 10},
			wantErr: true,
		},
		{
			name:    "close below low",
			bar:     OHLCVBar{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 98, Volume: 10},
			wantErr: true,
		},
		{
			name:    "negative price",
			bar:     OHLCVBar{Timestamp: ts, Open: -1, High: 101, Low: -2, Close: 100, Volume: 10},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bar.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKey(t *testing.T) {
	date := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "AAPL:2026-08-31", Key("AAPL", date))

	snap := &Snapshot{Symbol: "MSFT", TradingDate: date}
	assert.Equal(t, "MSFT:2026-08-31", snap.Key())
}

func TestSnapshot_Age(t *testing.T) {
	fetched := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	snap := &Snapshot{FetchedAt: fetched}

	assert.Equal(t, 45*time.Second, snap.Age(fetched.Add(45*time.Second)))
}
