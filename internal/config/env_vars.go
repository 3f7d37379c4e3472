package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar   = "PORT"
	appNameVar   = "APP_NAME"
	redisAddrVar = "REDIS_ADDR"
	databaseVar  = "DATABASE_URL"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetRedisAddr() string
	GetDatabaseURL() string
	GetEnv() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Tenant Gateway")
}

// GetRedisAddr returns the redis address for the handoff consumed-token
// store. Empty means "use the in-memory store" (single replica only).
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

// GetDatabaseURL returns the postgres connection string for the
// impersonation audit store. Empty means "use the in-memory store".
func (EnvVars) GetDatabaseURL() string {
	return GetEnv(databaseVar, "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
