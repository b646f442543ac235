package config

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/semihalev/zlog/v2"
)

const configver = "1.0.0"

// DefaultFile is the config file looked up when none is given. It is
// generated on first start.
const DefaultFile = "bhdns.conf"

// Config type
type Config struct {
	Version       string
	Listen        string
	Port          uint16
	ForwardAddr   string
	ForwardPort   uint16
	StatsPort     uint16
	Sinkhole      string
	BlockListFile string
	Blocklist     []string
	Whitelist     []string
	AccessList    []string
	User          string
	Timeout       Duration
	TTL           uint32
	LogLevel      string
	API           string

	sVersion string
}

// ServerVersion return current server version
func (c *Config) ServerVersion() string {
	return c.sVersion
}

// ListenAddr returns the host:port the DNS socket binds to.
func (c *Config) ListenAddr() string {
	return joinHostPort(c.Listen, c.Port)
}

// StatsAddr returns the host:port the stats socket binds to.
func (c *Config) StatsAddr() string {
	return joinHostPort(c.Listen, c.StatsPort)
}

// UpstreamAddr returns the host:port queries are forwarded to.
func (c *Config) UpstreamAddr() string {
	return joinHostPort(c.ForwardAddr, c.ForwardPort)
}

func joinHostPort(host string, port uint16) string {
	if host == "all" {
		host = ""
	}
	return fmt.Sprintf("%s:%d", strings.Trim(host, "[]"), port)
}

// Duration type
type Duration struct {
	time.Duration
}

// UnmarshalText for duration type
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

var defaultConfig = `
# Config version, config and build versions can be different.
version = "%s"

# Address to bind the DNS and stats sockets to, "all" or empty for every address
listen = "0.0.0.0"

# Port for DNS queries
port = 53

# Upstream recursive resolver queries are forwarded to
forwardaddr = "9.9.9.9"

# Upstream resolver port
forwardport = 53

# Port answering plaintext "stats" requests over UDP
statsport = 8053

# IPv4 address returned for blocked domains
sinkhole = "0.0.0.0"

# Blocklist file, one domain per line. Lines starting with # are comments.
# Hosts file lines, like "0.0.0.0 ads.example.com", are accepted too.
blocklistfile = "/var/bhdns/blist"

# Manual blocklist entries
blocklist = []

# Manual whitelist entries, never blocked even when listed above
whitelist = []

# Which clients allowed to make queries
accesslist = [
"0.0.0.0/0"
]

# Unprivileged user to switch to once the sockets are bound, left blank for disabled
user = ""

# How long to wait for the upstream answer
timeout = "5s"

# TTL in seconds of the answers for blocked domains
ttl = 3600

# What kind of information should be logged, Log verbosity level [error,warn,info,debug]
loglevel = "info"

# Address to bind to for the http API server, left blank for disabled
api = ""
`

// Load loads the given config file
func Load(cfgfile, version string) (*Config, error) {
	config := defaults()

	if _, err := os.Stat(cfgfile); os.IsNotExist(err) && path.Base(cfgfile) == DefaultFile {
		if err := Generate(cfgfile); err != nil {
			return nil, err
		}
	}

	zlog.Info("Loading config file", "path", cfgfile)

	if _, err := toml.DecodeFile(cfgfile, config); err != nil {
		return nil, fmt.Errorf("could not load config: %s", err)
	}

	if config.Version != configver {
		zlog.Warn("Config file is out of version, you can generate new one and check the changes.")
	}

	config.sVersion = version

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Listen:        "0.0.0.0",
		Port:          53,
		ForwardPort:   53,
		StatsPort:     8053,
		Sinkhole:      "0.0.0.0",
		BlockListFile: "/var/bhdns/blist",
		AccessList:    []string{"0.0.0.0/0"},
		Timeout:       Duration{5 * time.Second},
		TTL:           3600,
		LogLevel:      "info",
	}
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.ForwardAddr == "" {
		return errors.New("forwardaddr is required")
	}
	if c.Port == 0 || c.ForwardPort == 0 || c.StatsPort == 0 {
		return errors.New("port, forwardport and statsport must be set")
	}
	if c.Port == c.StatsPort {
		return fmt.Errorf("port and statsport both use %d", c.Port)
	}

	addr, err := netip.ParseAddr(c.Sinkhole)
	if err != nil {
		return fmt.Errorf("invalid sinkhole address: %w", err)
	}
	if !addr.Is4() {
		return fmt.Errorf("sinkhole %s is not an IPv4 address", c.Sinkhole)
	}

	if c.Timeout.Duration <= 0 {
		return errors.New("timeout must be positive")
	}

	return nil
}

// Generate writes the default config to path.
func Generate(path string) error {
	output, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not generate config: %s", err)
	}

	defer func() {
		err := output.Close()
		if err != nil {
			zlog.Warn("Config generation failed while file closing", "error", err.Error())
		}
	}()

	r := strings.NewReader(fmt.Sprintf(defaultConfig, configver))
	if _, err := io.Copy(output, r); err != nil {
		return fmt.Errorf("could not copy default config: %s", err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		zlog.Info("Default config file generated", "config", abs)
	}

	return nil
}
