package client

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config 同步器与命令行宿主的全部配置
type Config struct {
	ServerURL string
	Token     string // 可选，握手时作为 Bearer 令牌

	LogFile  string
	LogLevel string

	ShootCooldown    time.Duration
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	ReadTimeout      time.Duration // 0 表示不设读超时
	PingPeriod       time.Duration // 0 表示不主动 ping
	ReadLimit        int64
	SendBuffer       int
	InboundBuffer    int

	DebugAddr  string
	RecordPath string
	ReplayPath string

	Retry      bool
	RetryBase  time.Duration
	RetryMax   time.Duration
	RetryLimit int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		ServerURL:        "ws://127.0.0.1:8080/game",
		LogFile:          "sync.log",
		LogLevel:         "info",
		ShootCooldown:    DefaultShootCooldown,
		HandshakeTimeout: 5 * time.Second,
		WriteWait:        10 * time.Second,
		ReadLimit:        1 << 20, // 1MB
		SendBuffer:       64,
		InboundBuffer:    256,
		RetryBase:        500 * time.Millisecond,
		RetryMax:         30 * time.Second,
	}
}

// RegisterFlags 绑定命令行参数；默认值可由 SYNC_* 环境变量覆盖
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ServerURL, "url", getenv("SYNC_WS_URL", c.ServerURL), "game server websocket url")
	fs.StringVar(&c.Token, "token", getenv("SYNC_TOKEN", c.Token), "bearer token sent on handshake")
	fs.StringVar(&c.LogFile, "log-file", getenv("SYNC_LOG_FILE", c.LogFile), "log file path, empty for stderr")
	fs.StringVar(&c.LogLevel, "log-level", getenv("SYNC_LOG_LEVEL", c.LogLevel), "debug|info|warn|error")
	fs.DurationVar(&c.ShootCooldown, "shoot-cooldown", getenvDuration("SYNC_SHOOT_COOLDOWN", c.ShootCooldown), "client-side shoot throttle")
	fs.DurationVar(&c.HandshakeTimeout, "handshake-timeout", getenvDuration("SYNC_HANDSHAKE_TIMEOUT", c.HandshakeTimeout), "websocket handshake timeout")
	fs.DurationVar(&c.WriteWait, "write-wait", getenvDuration("SYNC_WRITE_WAIT", c.WriteWait), "per-frame write deadline")
	fs.DurationVar(&c.ReadTimeout, "read-timeout", getenvDuration("SYNC_READ_TIMEOUT", c.ReadTimeout), "read deadline, 0 disables")
	fs.DurationVar(&c.PingPeriod, "ping-period", getenvDuration("SYNC_PING_PERIOD", c.PingPeriod), "ping interval, 0 disables")
	fs.IntVar(&c.SendBuffer, "send-buffer", getenvInt("SYNC_SEND_BUFFER", c.SendBuffer), "outbound queue size")
	fs.IntVar(&c.InboundBuffer, "inbound-buffer", getenvInt("SYNC_INBOUND_BUFFER", c.InboundBuffer), "inbound queue size")
	fs.StringVar(&c.DebugAddr, "debug-addr", getenv("SYNC_DEBUG_ADDR", c.DebugAddr), "debug http listen address, empty disables")
	fs.StringVar(&c.RecordPath, "record", getenv("SYNC_RECORD", c.RecordPath), "record inbound frames to this file")
	fs.StringVar(&c.ReplayPath, "replay", getenv("SYNC_REPLAY", c.ReplayPath), "replay a recorded file instead of connecting")
	fs.BoolVar(&c.Retry, "retry", c.Retry, "retry the initial connect with backoff")
	fs.DurationVar(&c.RetryBase, "retry-base", c.RetryBase, "first retry delay")
	fs.DurationVar(&c.RetryMax, "retry-max", c.RetryMax, "retry delay cap")
	fs.IntVar(&c.RetryLimit, "retry-limit", c.RetryLimit, "max connect attempts, 0 for unlimited")
}

// Validate 检查配置
func (c Config) Validate() error {
	if c.ReplayPath == "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			return fmt.Errorf("server url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("server url %q: scheme must be ws or wss", c.ServerURL)
		}
	}
	if c.ShootCooldown <= 0 {
		return fmt.Errorf("shoot cooldown must be positive, got %v", c.ShootCooldown)
	}
	if c.SendBuffer <= 0 || c.InboundBuffer <= 0 {
		return fmt.Errorf("buffers must be positive (send=%d inbound=%d)", c.SendBuffer, c.InboundBuffer)
	}
	if c.ReadTimeout < 0 || c.PingPeriod < 0 {
		return fmt.Errorf("read timeout and ping period must not be negative")
	}
	if c.RecordPath != "" && c.ReplayPath != "" {
		return fmt.Errorf("record and replay are mutually exclusive")
	}
	return nil
}

// TransportConfig 取出传输层相关字段
func (c Config) TransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: c.HandshakeTimeout,
		WriteWait:        c.WriteWait,
		ReadTimeout:      c.ReadTimeout,
		PingPeriod:       c.PingPeriod,
		ReadLimit:        c.ReadLimit,
		SendBuffer:       c.SendBuffer,
		Token:            c.Token,
	}
}

// Backoff 重连退避参数
func (c Config) Backoff() Backoff {
	return Backoff{Base: c.RetryBase, Max: c.RetryMax, Attempts: c.RetryLimit}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
