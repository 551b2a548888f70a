package main

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerURL     string `envconfig:"SERVER_URL" default:"ws://localhost:8765"`
	ParticipantID string `envconfig:"PARTICIPANT_ID" required:"true"`
	Name          string `envconfig:"PARTICIPANT_NAME" required:"true"`
	ComputerName  string `envconfig:"COMPUTER_NAME"`
	ComputerIP    string `envconfig:"COMPUTER_IP"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"INFO"`

	HeartbeatInterval   time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"5s"`
	ProcessScanInterval time.Duration `envconfig:"PROCESS_SCAN_INTERVAL" default:"3s"`
	ReconnectInterval   time.Duration `envconfig:"RECONNECT_INTERVAL" default:"5s"`
	RestartInterval     time.Duration `envconfig:"RESTART_INTERVAL" default:"2s"`
	KillBlocked         bool          `envconfig:"KILL_BLOCKED" default:"false"`
	SkipValidation      bool          `envconfig:"SKIP_VALIDATION" default:"false"`
	EventBuffer         int           `envconfig:"EVENT_BUFFER" default:"64"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if !strings.HasPrefix(cfg.ServerURL, "ws://") && !strings.HasPrefix(cfg.ServerURL, "wss://") {
		return Config{}, fmt.Errorf("SERVER_URL must start with ws:// or wss://, got %q", cfg.ServerURL)
	}
	if cfg.ComputerName == "" {
		cfg.ComputerName, _ = os.Hostname()
	}
	if cfg.ComputerIP == "" {
		cfg.ComputerIP = localIP()
	}
	return cfg, nil
}

// HTTPBase is the plain HTTP address of the same server.
func (c Config) HTTPBase() string {
	return "http" + strings.TrimPrefix(strings.TrimRight(c.ServerURL, "/"), "ws")
}

// localIP picks the first non-loopback IPv4 address.
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return ""
}
