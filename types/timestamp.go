package types

import (
	"strings"
	"time"
)

// TimestampLayout is the document representation of every stored instant.
const TimestampLayout = "2006-01-02 15:04:05"

func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(TimestampLayout, s, time.UTC)
}

func FormatTimestampPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTimestamp(*t)
}

func ParseTimestampPtr(s string) (*time.Time, error) {
	t, err := ParseTimestamp(s)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}
