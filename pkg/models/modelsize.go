package models

import (
	"fmt"
	"strings"
)

// ModelSize is one of the three fixed model tiers.
type ModelSize int

const (
	Small ModelSize = iota
	Medium
	Large
)

// ModelSizes lists every tier, smallest first.
var ModelSizes = []ModelSize{Small, Medium, Large}

func (s ModelSize) String() string {
	switch s {
	case Small:
		return "small"
	case Medium:
		return "medium"
	case Large:
		return "large"
	default:
		return fmt.Sprintf("ModelSize(%d)", int(s))
	}
}

// Short is the two letter suffix used by the WrapperInterface method names.
func (s ModelSize) Short() string {
	switch s {
	case Small:
		return "SM"
	case Medium:
		return "MD"
	case Large:
		return "LG"
	default:
		return ""
	}
}

// Method returns the WrapperInterface method name for the tier, e.g. "processSM".
func (s ModelSize) Method() string {
	return "process" + s.Short()
}

func (s ModelSize) Valid() bool {
	return s >= Small && s <= Large
}

// ParseModelSize accepts "small", "sm", "SM", "processSM" and the like.
func ParseModelSize(v string) (ModelSize, error) {
	key := strings.ToLower(strings.TrimSpace(v))
	key = strings.TrimPrefix(key, "process")
	switch key {
	case "small", "sm":
		return Small, nil
	case "medium", "md":
		return Medium, nil
	case "large", "lg":
		return Large, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownModelSize, v)
}
