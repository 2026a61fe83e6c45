package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BioHazard786/Warpdrop/meet/internal/call"
	"github.com/BioHazard786/Warpdrop/meet/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

// Default configuration values
const (
	DefaultSignalServer = "ws://localhost:8080"
	DefaultSTUN         = "stun:stun.l.google.com:19302"
)

var (
	ErrMissingCredential = errors.New("user secret is required")
	ErrMissingUserID     = errors.New("user id is required")
	ErrRecoveryDelays    = errors.New("failed recovery delay must be shorter than disconnected recovery delay")
)

// Config holds application configuration
type Config struct {
	// SignalServer is the relay WebSocket URL
	SignalServer string

	// UserID is our numeric id on the relay; UserSecret authenticates it
	UserID     signaling.PeerID
	UserSecret string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates
	ForceRelay bool

	// Recovery timers
	DisconnectedDelay time.Duration
	FailedDelay       time.Duration

	// PingInterval is the relay keepalive period
	PingInterval time.Duration

	// JournalPath, when set, records the call
	JournalPath string
}

// Options for loading config with CLI flag overrides. Zero values mean
// "not set on the command line".
type Options struct {
	SignalServer string
	UserID       int64
	UserSecret   string
	STUNServer   string
	TURNServer   string
	TURNUser     string
	TURNPass     string
	ForceRelay   bool
	JournalPath  string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		SignalServer: pick(opts.SignalServer, "SIGNAL_SERVER", DefaultSignalServer),
		UserSecret:   pick(opts.UserSecret, "USER_SECRET", ""),
		STUNServer:   pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:   pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:     pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:     pick(opts.TURNPass, "TURN_PASSWORD", ""),
		JournalPath:  pick(opts.JournalPath, "JOURNAL_PATH", ""),
	}

	// Load user id: CLI flag > env
	if opts.UserID != 0 {
		cfg.UserID = signaling.PeerID(opts.UserID)
	} else if v := os.Getenv("USER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid USER_ID %q: %w", v, err)
		}
		cfg.UserID = signaling.PeerID(id)
	}

	// Load relay policy: CLI flag > env > network heuristic
	cfg.ForceRelay = opts.ForceRelay
	if !cfg.ForceRelay {
		if v := os.Getenv("FORCE_RELAY"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid FORCE_RELAY %q: %w", v, err)
			}
			cfg.ForceRelay = b
		} else if cfg.TURNServer != "" {
			cfg.ForceRelay = ShouldForceRelay()
		}
	}

	var err error
	if cfg.DisconnectedDelay, err = duration("RECOVERY_DISCONNECTED_DELAY", call.DefaultDisconnectedDelay); err != nil {
		return nil, err
	}
	if cfg.FailedDelay, err = duration("RECOVERY_FAILED_DELAY", call.DefaultFailedDelay); err != nil {
		return nil, err
	}
	if cfg.PingInterval, err = duration("PING_INTERVAL", signaling.DefaultPingInterval); err != nil {
		return nil, err
	}

	return cfg, nil
}

func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

func duration(env string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(env)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", env, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", env, v)
	}
	return d, nil
}

// Validate checks what is needed to join a call.
func (c *Config) Validate() error {
	if c.UserSecret == "" {
		return ErrMissingCredential
	}
	if c.UserID <= 0 {
		return ErrMissingUserID
	}
	if !strings.HasPrefix(c.SignalServer, "ws://") && !strings.HasPrefix(c.SignalServer, "wss://") {
		return fmt.Errorf("signal server must be a ws:// or wss:// URL, got %q", c.SignalServer)
	}
	if c.ForceRelay && c.TURNServer == "" {
		return errors.New("relay-only ICE needs a TURN server")
	}
	if c.FailedDelay >= c.DisconnectedDelay {
		return fmt.Errorf("%w: %s >= %s", ErrRecoveryDelays, c.FailedDelay, c.DisconnectedDelay)
	}
	return nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turn:"), "turns:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// WebRTC builds the peer connection configuration.
func (c *Config) WebRTC() pion.Configuration {
	var servers []pion.ICEServer
	if stun := c.GetSTUNServers(); len(stun) > 0 {
		servers = append(servers, pion.ICEServer{URLs: stun})
	}
	if turn := c.GetTURNServers(); len(turn) > 0 {
		servers = append(servers, pion.ICEServer{
			URLs:       turn,
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}

	policy := pion.ICETransportPolicyAll
	if c.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: policy,
	}
}
