package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Backup BackupConfig
}

type ServerConfig struct {
	ID      string
	Name    string
	Address string
	Port    uint16
}

type DBConfig struct {
	Driver string
	DSN    string
}

type BackupConfig struct {
	URL      string
	Interval time.Duration
}

// Load reads .env (if present) and the environment. A missing SERVER_ID
// gets a freshly generated UUID, which makes first boot work without any
// provisioning step.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	id := os.Getenv("SERVER_ID")
	if id == "" {
		id = uuid.NewString()
		log.Printf("SERVER_ID not set, generated %s", id)
	} else if _, err := uuid.Parse(id); err != nil {
		log.Fatalf("SERVER_ID must be a valid UUID: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			ID:      id,
			Name:    getEnvOrDefault("SERVER_NAME", "fedchat"),
			Address: getEnvOrDefault("SERVER_ADDR", "127.0.0.1"),
			Port:    getPortOrDefault("SERVER_PORT", 8420),
		},
		DB: DBConfig{
			Driver: getEnvOrDefault("DB_DRIVER", "sqlite3"),
			DSN:    os.Getenv("DB_DSN"),
		},
		Backup: BackupConfig{
			URL:      os.Getenv("BACKUP_URL"),
			Interval: getDurationOrDefault("BACKUP_INTERVAL", "5m"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getPortOrDefault(key string, defaultValue uint16) uint16 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	port, err := strconv.ParseUint(value, 10, 16)
	if err != nil {
		log.Fatalf("Invalid port for %s: %v", key, err)
	}
	return uint16(port)
}

func getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return duration
}
