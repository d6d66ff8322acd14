package common

import (
	"fmt"
	"os"
	"strconv"
)

const defaultServerPort = 8866

func GetServerPort() int {
	return intFromEnv("QF_SERVER_PORT", defaultServerPort)
}

const defaultServerHost = "127.0.0.1"

// GetServerHost returns the interface the api server binds to. Defaults to
// loopback so a local install is not reachable from the network.
func GetServerHost() string {
	host := os.Getenv("QF_SERVER_HOST")
	if host == "" {
		return defaultServerHost
	}
	return host
}

// GetServerBaseURL is where cli commands reach the api server.
func GetServerBaseURL() string {
	if url := os.Getenv("QF_SERVER_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("http://%s:%d", GetServerHost(), GetServerPort())
}

const defaultRedisAddr = "localhost:6379"

func GetRedisAddr() string {
	addr := os.Getenv("QF_REDIS_ADDR")
	if addr == "" {
		return defaultRedisAddr
	}
	return addr
}

const defaultNatsServerHost = "localhost"

func GetNatsServerHost() string {
	host := os.Getenv("QF_NATS_SERVER_HOST")
	if host == "" {
		return defaultNatsServerHost
	}
	return host
}

func GetNatsServerPort() int {
	return intFromEnv("QF_NATS_SERVER_PORT", GetServerPort()+1000)
}

func intFromEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse %s: %s", key, value))
	}
	return intValue
}
