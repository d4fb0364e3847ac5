package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxRetentionSeconds is the largest whole-second count a time.Duration holds.
const maxRetentionSeconds = math.MaxInt64 / int64(time.Second)

var retentionUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// ParseRetention accepts whole seconds ("300") or a number with one of the
// suffixes s, m, h, d ("30s", "1.5h", "7d"). Empty means zero. Invalid input
// returns zero and an error; callers that tolerate bad values ignore it.
func ParseRetention(raw string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		if n > uint64(maxRetentionSeconds) {
			return 0, fmt.Errorf("prompt cache retention %q out of range", raw)
		}
		return time.Duration(n) * time.Second, nil
	} else if isDigits(s) {
		return 0, fmt.Errorf("prompt cache retention %q out of range", raw)
	}

	unit, ok := retentionUnits[s[len(s)-1]]
	num := s[:len(s)-1]
	if !ok || !decimal(num) {
		return 0, fmt.Errorf("invalid prompt cache retention %q", raw)
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid prompt cache retention %q", raw)
	}
	secs := f * float64(unit/time.Second)
	if secs > float64(maxRetentionSeconds) {
		return 0, fmt.Errorf("prompt cache retention %q out of range", raw)
	}
	// Truncated to whole seconds.
	return time.Duration(secs) * time.Second, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// decimal reports whether s is digits with at most one dot.
func decimal(s string) bool {
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
			digits++
		case s[i] == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
