package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseInterval converts an exchange interval token like "1m", "4h", "3d" or
// "1w" into a duration.
func ParseInterval(interval string) (time.Duration, error) {
	s := strings.TrimSpace(strings.ToLower(interval))
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid interval unit %q", interval)
	}
}
