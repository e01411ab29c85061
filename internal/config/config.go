package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable, e.g. GAME_ROOM_LISTEN_PORT.
const EnvPrefix = "GAME_ROOM"

// Default configuration values.
const (
	DefaultListenPort      = 7575
	DefaultServerUUID      = "00000000-0000-0000-0000-000000000000"
	DefaultQueueSize       = 256
	DefaultMaxMessageSize  = 8 * 1024 * 1024
	DefaultPingPeriod      = time.Second
	DefaultPongWait        = 2 * time.Second
	DefaultWriteWait       = 10 * time.Second
	DefaultShutdownTimeout = time.Second
)

// Config holds the router configuration.
type Config struct {
	ListenPort int

	// ServerUUID restricts which id may open a room. uuid.Nil accepts any.
	ServerUUID uuid.UUID

	// DebugMode only changes logging verbosity.
	DebugMode bool

	QueueSize      int
	MaxMessageSize int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration

	// NotifyServer sends client join/leave notices to room servers and
	// envelopes every client frame with its sender's id. Off by default so
	// servers receive client frames unchanged.
	NotifyServer bool

	ShutdownTimeout time.Duration
}

// flag name -> viper key
var flagKeys = map[string]string{
	"listen-port":      "listen_port",
	"server-uuid":      "server_uuid",
	"debug-mode":       "debug_mode",
	"queue-size":       "queue_size",
	"max-message-size": "max_message_size",
	"ping-period":      "ping_period",
	"pong-wait":        "pong_wait",
	"write-wait":       "write_wait",
	"notify-server":    "notify_server",
	"shutdown-timeout": "shutdown_timeout",
}

// RegisterFlags adds the router flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.IntP("listen-port", "l", DefaultListenPort, "Set listening port")
	fs.StringP("server-uuid", "s", DefaultServerUUID, "Only accept this server UUID (all-zero accepts any)")
	fs.BoolP("debug-mode", "d", false, "Debug mode, enables INFO and DEBUG logs")
	fs.Int("queue-size", DefaultQueueSize, "Outbound frames buffered per session")
	fs.Int64("max-message-size", DefaultMaxMessageSize, "Maximum inbound frame size in bytes")
	fs.Duration("ping-period", DefaultPingPeriod, "Interval between pings to each peer")
	fs.Duration("pong-wait", DefaultPongWait, "Drop a peer silent for this long")
	fs.Duration("write-wait", DefaultWriteWait, "Time allowed to write a frame")
	fs.Bool("notify-server", false, "Send join/leave notices to room servers; client frames then arrive enveloped as [op][client id][payload]")
	fs.Duration("shutdown-timeout", DefaultShutdownTimeout, "Graceful shutdown timeout")
}

// Load reads configuration with the following priority:
// 1. CLI flags that were set explicitly - highest priority
// 2. Environment variables (a .env file is loaded if present)
// 3. Defaults - lowest priority
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_port", DefaultListenPort)
	v.SetDefault("server_uuid", DefaultServerUUID)
	v.SetDefault("debug_mode", false)
	v.SetDefault("queue_size", DefaultQueueSize)
	v.SetDefault("max_message_size", DefaultMaxMessageSize)
	v.SetDefault("ping_period", DefaultPingPeriod)
	v.SetDefault("pong_wait", DefaultPongWait)
	v.SetDefault("write_wait", DefaultWriteWait)
	v.SetDefault("notify_server", false)
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	serverUUID, err := uuid.Parse(v.GetString("server_uuid"))
	if err != nil {
		return nil, fmt.Errorf("invalid server uuid: %w", err)
	}

	cfg := &Config{
		ListenPort:      v.GetInt("listen_port"),
		ServerUUID:      serverUUID,
		DebugMode:       v.GetBool("debug_mode"),
		QueueSize:       v.GetInt("queue_size"),
		MaxMessageSize:  v.GetInt64("max_message_size"),
		PingPeriod:      v.GetDuration("ping_period"),
		PongWait:        v.GetDuration("pong_wait"),
		WriteWait:       v.GetDuration("write_wait"),
		NotifyServer:    v.GetBool("notify_server"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the router cannot run with.
func (c *Config) Validate() error {
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("listen port %d out of range", c.ListenPort)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive, got %d", c.MaxMessageSize)
	}
	if c.PingPeriod <= 0 || c.PongWait <= c.PingPeriod {
		return fmt.Errorf("pong wait (%s) must exceed ping period (%s)", c.PongWait, c.PingPeriod)
	}
	if c.WriteWait <= 0 {
		return fmt.Errorf("write wait must be positive, got %s", c.WriteWait)
	}
	return nil
}

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.ListenPort)
}
