package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file when present. Missing files are fine; real
// deployments set variables through the environment.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
}

// GetEnv returns the variable value or the fallback.
func GetEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// GetEnvBool parses a boolean variable, returning the fallback on absence or
// parse failure.
func GetEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
