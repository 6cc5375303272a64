package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	// DB
	DBPath string // e.g. "./data/mailhub.db"

	// Devices
	SensorPath string // door sensor state file ("1"/"0"); sysfs value file on hardware
	LightPath  string // optional sysfs value file for the capture light
	CaptureDir string // where capture clips land
	Hardware   bool   // shell out to the real camera instead of writing stubs

	// Protocol
	AccessPIN int

	// Watchdog
	PollInterval time.Duration

	LogLevel string // zerolog level name
}

func FromEnv() Config {
	return Config{
		HTTPAddr:     getenvDefault("MAILHUB_HTTP_ADDR", ":3012"),
		DBPath:       getenvDefault("MAILHUB_DB_PATH", "./data/mailhub.db"),
		SensorPath:   getenvDefault("MAILHUB_SENSOR_PATH", "./sensor.txt"),
		LightPath:    os.Getenv("MAILHUB_LIGHT_PATH"),
		CaptureDir:   getenvDefault("MAILHUB_CAPTURE_DIR", "./captures"),
		Hardware:     getenvBool("MAILHUB_HARDWARE"),
		AccessPIN:    getenvInt("MAILHUB_ACCESS_PIN", 6245),
		PollInterval: time.Duration(getenvInt("MAILHUB_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		LogLevel:     getenvDefault("MAILHUB_LOG_LEVEL", "info"),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string) bool {
	v := os.Getenv(key)
	return strings.EqualFold(v, "true") || v == "1"
}
