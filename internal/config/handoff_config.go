package config

import (
	"strconv"
	"time"
)

type HandoffConfig interface {
	GetHandoffTokenTTL() time.Duration
	GetMinSessionMinutes() int
	GetMaxSessionMinutes() int
}

type Handoff struct{}

var _ HandoffConfig = Handoff{}

// GetHandoffTokenTTL returns how long a minted handoff token stays
// redeemable. The token only needs to survive one redirect, so this is
// deliberately short.
func (Handoff) GetHandoffTokenTTL() time.Duration {
	return time.Duration(getEnvInt("HANDOFF_TTL_SECONDS", 300)) * time.Second
}

func (Handoff) GetMinSessionMinutes() int {
	return getEnvInt("HANDOFF_MIN_MINUTES", 15)
}

func (Handoff) GetMaxSessionMinutes() int {
	return getEnvInt("HANDOFF_MAX_MINUTES", 480)
}

func getEnvInt(envVar string, defaultValue int) int {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}
