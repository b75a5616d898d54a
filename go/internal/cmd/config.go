package main

import (
	"os"
	"strconv"

	"github.com/mcdev12/fokus/go/internal/config"
)

func loadConfig() (config.Config, error) {
	return config.Load(getEnv("FOKUS_CONFIG", config.DefaultPath))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
