package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSmallDirectoryThreshold int64 = 100000
	DefaultCapacityLimit           int64 = 40000000
)

// Limits are the thresholds a report is computed against. CapacityLimit is
// the most the tree may occupy; anything above it has to be freed.
type Limits struct {
	SmallDirectoryThreshold int64 `yaml:"small_directory_threshold" json:"small_directory_threshold"`
	CapacityLimit           int64 `yaml:"capacity_limit" json:"capacity_limit"`
}

func DefaultLimits() Limits {
	return Limits{
		SmallDirectoryThreshold: DefaultSmallDirectoryThreshold,
		CapacityLimit:           DefaultCapacityLimit,
	}
}

func (l Limits) Validate() error {
	if l.SmallDirectoryThreshold < 0 {
		return fmt.Errorf("small directory threshold must not be negative, got %d", l.SmallDirectoryThreshold)
	}
	if l.CapacityLimit < 0 {
		return fmt.Errorf("capacity limit must not be negative, got %d", l.CapacityLimit)
	}
	return nil
}

// LoadLimits overlays the YAML file at path on top of base. Keys missing from
// the file keep their value from base.
func LoadLimits(path string, base Limits) (Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read limits file: %w", err)
	}
	return ParseLimits(data, base)
}

func ParseLimits(data []byte, base Limits) (Limits, error) {
	limits := base
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return base, fmt.Errorf("failed to parse limits: %w", err)
	}
	if err := limits.Validate(); err != nil {
		return base, err
	}
	return limits, nil
}
