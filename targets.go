package reqsched

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/framekeeper/reqsched/request"
)

// Target describes a resource to fetch.
type Target struct {
	URL      string  `yaml:"url"`
	Priority float64 `yaml:"priority"`
	Distance float64 `yaml:"distance"`
	Category string  `yaml:"category"`

	// Throttle defaults to true. Targets with throttle: false are fetched
	// immediately, without waiting for a free slot.
	Throttle *bool `yaml:"throttle"`
}

func (t Target) throttled() bool {
	return t.Throttle == nil || *t.Throttle
}

func (t Target) requestOptions() request.Options {
	return request.Options{
		Target:        t.URL,
		Category:      request.ParseCategory(t.Category),
		Throttle:      t.throttled(),
		PriorityScore: t.Priority,
		Distance:      t.Distance,
	}
}

// LoadTargets reads a YAML list of targets from a file.
func LoadTargets(path string) ([]Target, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	return ParseTargets(b)
}

// ParseTargets parses a YAML list of targets.
func ParseTargets(b []byte) ([]Target, error) {
	var targets []Target
	if err := yaml.Unmarshal(b, &targets); err != nil {
		return nil, fmt.Errorf("failed to parse targets: %w", err)
	}

	for i, t := range targets {
		if t.URL == "" {
			return nil, fmt.Errorf("target %d: missing url", i)
		}
	}

	return targets, nil
}
