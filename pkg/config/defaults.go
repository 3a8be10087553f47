// Package config provides centralized default values for SessionBridge
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// State directories
	DataDir  string
	PagesDir string

	// Session lifecycle
	PromotedMaxAge    time.Duration
	PendingMaxAge     time.Duration
	HeartbeatTimeout  time.Duration
	DisconnectGrace   time.Duration
	LoadingTimeout    time.Duration
	HeartbeatInterval time.Duration
	FullSweepInterval time.Duration
	SweepVerbose      bool

	// Operator auth
	OperatorJWTSecret string
	AdminPassword     string
	OperatorTokenTTL  time.Duration

	// Runtime behaviour
	ServiceEnabled bool
	ExitURL        string
	DefaultEntry   string

	// Notification sink
	ResendAPIKey    string
	NotifyFromEmail string
	NotifyToEmail   string
	NotifyEnabled   bool

	// Transport buffers
	ObserverSendBuffer int
	ClientSendBuffer   int
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// State directories
	DataDir = getEnvString("DATA_DIR", "data")
	PagesDir = getEnvString("PAGES_DIR", "web/pages")

	// Session lifecycle
	PromotedMaxAge = getEnvDuration("SESSION_MAX_AGE", 30*time.Minute)
	PendingMaxAge = getEnvDuration("PENDING_MAX_AGE", 5*time.Minute)
	HeartbeatTimeout = getEnvDuration("HEARTBEAT_TIMEOUT", 30*time.Second)
	DisconnectGrace = getEnvDuration("DISCONNECT_GRACE", 15*time.Minute)
	LoadingTimeout = getEnvDuration("LOADING_TIMEOUT", 5*time.Second)
	HeartbeatInterval = getEnvDuration("HEARTBEAT_SWEEP_INTERVAL", 10*time.Second)
	FullSweepInterval = getEnvDuration("FULL_SWEEP_INTERVAL", 5*time.Minute)
	SweepVerbose = getEnvBool("SWEEP_VERBOSE", false)

	// Operator auth
	OperatorJWTSecret = getEnvString("OPERATOR_JWT_SECRET", "")
	AdminPassword = getEnvString("ADMIN_PASSWORD", "")
	OperatorTokenTTL = getEnvDuration("OPERATOR_TOKEN_TTL", 7*24*time.Hour)

	// Runtime behaviour
	ServiceEnabled = getEnvBool("SERVICE_ENABLED", true)
	ExitURL = getEnvString("EXIT_URL", "https://www.example.com")
	DefaultEntry = getEnvString("DEFAULT_ENTRY_PAGE", "verify")

	// Notification sink
	ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	NotifyFromEmail = getEnvString("NOTIFY_FROM_EMAIL", "notify@localhost")
	NotifyToEmail = getEnvString("NOTIFY_TO_EMAIL", "")
	NotifyEnabled = ResendAPIKey != "" && NotifyToEmail != ""

	// Transport buffers
	ObserverSendBuffer = getEnvInt("OBSERVER_SEND_BUFFER", 64)
	ClientSendBuffer = getEnvInt("CLIENT_SEND_BUFFER", 16)
}
