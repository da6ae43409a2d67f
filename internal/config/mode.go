package config

import (
	"fmt"
	"strings"
)

// Mode selects the content source for the window. Fixed at startup.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

func (m Mode) Valid() bool {
	return m == Development || m == Production
}

func (m Mode) IsDev() bool { return m == Development }

// ParseMode accepts "development"/"dev" and "production"/"prod".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev":
		return Development, nil
	case "production", "prod":
		return Production, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}
