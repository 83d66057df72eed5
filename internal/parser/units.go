package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// hashrateUnits maps a unit suffix to its multiplier in H/s.
var hashrateUnits = map[string]float64{
	"":     1,
	"H/S":  1,
	"KH/S": 1e3,
	"MH/S": 1e6,
	"GH/S": 1e9,
	"TH/S": 1e12,
	"PH/S": 1e15,
	"EH/S": 1e18,
}

// parseHashrate converts strings like "123.45 TH/s", "987654" or
// "0.5EH/s" into H/s. Empty means zero, which the API uses for idle
// accounts.
func parseHashrate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	num, unit := s, ""
	if i := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-' && r != '+'
	}); i >= 0 {
		num, unit = strings.TrimSpace(s[:i]), strings.TrimSpace(s[i:])
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("hashrate %q: %w", s, err)
	}
	mult, ok := hashrateUnits[strings.ToUpper(unit)]
	if !ok {
		return 0, fmt.Errorf("hashrate %q: unknown unit %q", s, unit)
	}
	return int64(v * mult), nil
}

// parsePercent converts "0.01%" or "0.01" into a float percentage.
func parsePercent(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("percentage %q: %w", s, err)
	}
	return v, nil
}

// parseAmount converts a decimal amount string. Empty means zero.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	return v, nil
}

// parseTime decodes the API's several timestamp spellings: unix seconds
// or milliseconds as a number or numeric string, "2006-01-02 15:04:05",
// or RFC 3339. A null or empty value yields nil.
func parseTime(raw json.RawMessage) (*time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("timestamp %s: %w", raw, err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := fromUnix(n)
		return &t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("timestamp %q: unrecognized format", s)
}

// fromUnix guesses seconds vs milliseconds by magnitude. Values past
// the year 33658 in seconds are milliseconds.
func fromUnix(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
