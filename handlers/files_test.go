package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		header     string
		size       int64
		start, end int64
		ok         bool
	}{
		{"bytes=0-99", 1000, 0, 99, true},
		{"bytes=100-", 1000, 100, 999, true},
		{"bytes=900-2000", 1000, 900, 999, true},
		{"bytes=-100", 1000, 900, 999, true},
		{"bytes=-5000", 1000, 0, 999, true},
		{"bytes=1000-", 1000, 0, 0, false},
		{"bytes=50-10", 1000, 0, 0, false},
		{"bytes=0-1,5-6", 1000, 0, 0, false},
		{"bytes=-", 1000, 0, 0, false},
		{"bytes=abc-", 1000, 0, 0, false},
		{"items=0-1", 1000, 0, 0, false},
		{"bytes=0-", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			start, end, ok := parseRange(tt.header, tt.size)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.start, start)
				assert.Equal(t, tt.end, end)
			}
		})
	}
}
