package parser

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseHashrate(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"123.45 TH/s", 123450000000000, false},
		{"123.45TH/s", 123450000000000, false},
		{"0.5 EH/s", 500000000000000000, false},
		{"1 GH/s", 1000000000, false},
		{"987654", 987654, false},
		{"0", 0, false},
		{"", 0, false},
		{"12.5 XH/s", 0, true},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		got, err := parseHashrate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHashrate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseHashrate(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0.01%", 0.01, false},
		{"5.5 %", 5.5, false},
		{"3.2", 3.2, false},
		{"", 0, false},
		{"n/a", 0, true},
	}
	for _, tt := range tests {
		got, err := parsePercent(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePercent(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePercent(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		in   string
	}{
		{"unix seconds", "1704164645"},
		{"unix milliseconds", "1704164645000"},
		{"quoted unix", `"1704164645"`},
		{"datetime string", `"2024-01-02 03:04:05"`},
		{"rfc3339", `"2024-01-02T03:04:05Z"`},
	}
	for _, tt := range tests {
		got, err := parseTime(json.RawMessage(tt.in))
		if err != nil {
			t.Errorf("%s: parseTime(%s) error = %v", tt.name, tt.in, err)
			continue
		}
		if got == nil || !got.Equal(want) {
			t.Errorf("%s: parseTime(%s) = %v, want %v", tt.name, tt.in, got, want)
		}
	}
}

func TestParseTime_NullAndEmpty(t *testing.T) {
	for _, in := range []string{"null", `""`, ""} {
		got, err := parseTime(json.RawMessage(in))
		if err != nil {
			t.Errorf("parseTime(%q) error = %v", in, err)
		}
		if got != nil {
			t.Errorf("parseTime(%q) = %v, want nil", in, got)
		}
	}
}

func TestParseTime_Unrecognized(t *testing.T) {
	if _, err := parseTime(json.RawMessage(`"yesterday"`)); err == nil {
		t.Error("parseTime(\"yesterday\") error = nil, want error")
	}
}
