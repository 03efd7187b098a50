package core

import (
	"testing"
	"time"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"7d", now.AddDate(0, 0, -7), false},
		{" 30d ", now.AddDate(0, 0, -30), false},
		{"2w", now.AddDate(0, 0, -14), false},
		{"24h", now.Add(-24 * time.Hour), false},
		{"90m", now.Add(-90 * time.Minute), false},
		{"2024-03-10", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), false},
		{"2024-03-10T18:22:00+02:00", time.Date(2024, 3, 10, 16, 22, 0, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"x", time.Time{}, true},
		{"7x", time.Time{}, true},
		{"xd", time.Time{}, true},
		{"-5d", time.Time{}, true},
		{"-1h", time.Time{}, true},
		{"2024-13-40", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSince(now, tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSince(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseSince(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
