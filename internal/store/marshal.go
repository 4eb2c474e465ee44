package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// marshalCatalogue converts the service list to JSON TEXT for storage.
func marshalCatalogue(services []string) (string, error) {
	if services == nil {
		services = []string{}
	}
	data, err := json.Marshal(services)
	if err != nil {
		return "", fmt.Errorf("marshal catalogue: %w", err)
	}
	return string(data), nil
}

// unmarshalCatalogue parses JSON TEXT into the service list.
func unmarshalCatalogue(data string) ([]string, error) {
	services := []string{}
	if data == "" {
		return services, nil
	}
	if err := json.Unmarshal([]byte(data), &services); err != nil {
		return nil, fmt.Errorf("unmarshal catalogue: %w", err)
	}
	return services, nil
}

// timeLayout is RFC 3339 with a fixed-width fraction so stored times sort
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime stores wall-clock times in UTC. The zero time is stored as NULL.
func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
