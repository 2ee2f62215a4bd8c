package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultDomain  = "localhost:8080"
	DefaultSTUN    = "stun:stun.l.google.com:19302"
	DefaultTimeout = 10 * time.Second
)

// SignalingConfig locates the relay.
type SignalingConfig struct {
	// Domain is the relay host, used for room links and the default URL.
	Domain string `mapstructure:"domain"`

	// URL overrides the websocket endpoint derived from Domain.
	URL string `mapstructure:"url"`
}

// ICEConfig holds the ICE servers for WebRTC.
type ICEConfig struct {
	STUNServer string `mapstructure:"stun_server"`
	TURNServer string `mapstructure:"turn_server"`
	TURNUser   string `mapstructure:"turn_username"`
	TURNPass   string `mapstructure:"turn_password"`
	ForceRelay bool   `mapstructure:"force_relay"`
}

// SandboxConfig bounds code execution.
type SandboxConfig struct {
	Timeout        time.Duration     `mapstructure:"timeout"`
	MaxOutputBytes int               `mapstructure:"max_output_bytes"`
	TempDir        string            `mapstructure:"temp_dir"`
	Interpreters   map[string]string `mapstructure:"interpreters"`
}

// RelayConfig tunes the signaling server.
type RelayConfig struct {
	Addr           string        `mapstructure:"addr"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Config holds application configuration.
type Config struct {
	Signaling SignalingConfig `mapstructure:"signaling"`
	ICE       ICEConfig       `mapstructure:"ice"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Log       LogConfig       `mapstructure:"log"`
}

// New returns a viper instance with defaults and environment bindings.
// Callers may bind command line flags to it before calling Load.
//
// Priority is flags, then environment, then the config file, then defaults.
// Besides WARPRUN_* variables the legacy names STUN_SERVER, TURN_SERVER,
// TURN_USERNAME, TURN_PASSWORD, DOMAIN and LOG_LEVEL are honoured.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("signaling.domain", DefaultDomain)
	v.SetDefault("signaling.url", "")
	v.SetDefault("ice.stun_server", DefaultSTUN)
	v.SetDefault("ice.turn_server", "")
	v.SetDefault("ice.turn_username", "")
	v.SetDefault("ice.turn_password", "")
	v.SetDefault("ice.force_relay", false)
	v.SetDefault("sandbox.timeout", DefaultTimeout)
	v.SetDefault("sandbox.max_output_bytes", 1<<20)
	v.SetDefault("sandbox.temp_dir", "")
	v.SetDefault("sandbox.interpreters", map[string]string{})
	v.SetDefault("relay.addr", ":8080")
	v.SetDefault("relay.write_wait", 10*time.Second)
	v.SetDefault("relay.pong_wait", 60*time.Second)
	v.SetDefault("relay.max_message_size", 64*1024)
	v.SetDefault("relay.send_buffer", 256)
	v.SetDefault("log.level", "error")
	v.SetDefault("log.pretty", true)

	v.SetEnvPrefix("WARPRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	legacy := map[string]string{
		"signaling.domain":  "DOMAIN",
		"ice.stun_server":   "STUN_SERVER",
		"ice.turn_server":   "TURN_SERVER",
		"ice.turn_username": "TURN_USERNAME",
		"ice.turn_password": "TURN_PASSWORD",
		"log.level":         "LOG_LEVEL",
	}
	for key, env := range legacy {
		prefixed := "WARPRUN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}

	return v
}

// Load reads the optional config file and decodes v. An empty configFile
// searches ./warprun.yaml and $HOME/.warprun/warprun.yaml; a missing file
// is not an error unless it was named explicitly.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("warprun")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.warprun")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.ICE.ForceRelay && c.ICE.TURNServer == "" {
		return errors.New("force relay requires a TURN server")
	}
	if c.Sandbox.Timeout <= 0 {
		return fmt.Errorf("sandbox timeout must be positive, got %s", c.Sandbox.Timeout)
	}
	if c.Relay.PongWait <= 0 || c.Relay.WriteWait <= 0 {
		return errors.New("relay timeouts must be positive")
	}
	return nil
}

// WebSocketURL returns the relay endpoint.
func (c *Config) WebSocketURL() string {
	if c.Signaling.URL != "" {
		return c.Signaling.URL
	}
	scheme := "wss"
	if isLocal(c.Signaling.Domain) {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, c.Signaling.Domain)
}

// GetRoomLink returns a shareable link for a room ID.
func (c *Config) GetRoomLink(roomID string) string {
	scheme := "https"
	if isLocal(c.Signaling.Domain) {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/r/%s", scheme, c.Signaling.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Config) GetSTUNServers() []string {
	if c.ICE.STUNServer == "" {
		return nil
	}
	return []string{c.ICE.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Config) GetTURNServers() []string {
	if c.ICE.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.ICE.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.ICE.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", strings.TrimPrefix(c.ICE.TURNServer, "turn:")),
	}
}

// GetTURNCredentials returns TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.ICE.TURNUser, c.ICE.TURNPass
}

func isLocal(domain string) bool {
	host := domain
	if i := strings.LastIndex(domain, ":"); i >= 0 {
		host = domain[:i]
	}
	return host == "localhost" || host == "127.0.0.1" || host == "[::1]"
}
