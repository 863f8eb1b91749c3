package station

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/pbkdf2"
	"tinygo.org/x/drivers/netlink"
)

var ErrInvalidConfig = errors.New("invalid config")

const DefaultMaxRetries = 5

// Security is the weakest access point security the station accepts
type Security uint8

const (
	SecurityOpen Security = iota
	SecurityWPA
	SecurityWPA2Mixed
	SecurityWPA2
)

var securityNames = []string{"open", "wpa", "wpa2-mixed", "wpa2"}

func (s Security) String() string {
	if int(s) < len(securityNames) {
		return securityNames[s]
	}
	return fmt.Sprintf("security(%d)", uint8(s))
}

func (s Security) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Security) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range securityNames {
		if n == name {
			*s = Security(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown security %q", ErrInvalidConfig, text)
}

// AuthType maps the threshold onto the netlink auth type a driver joins with
func (s Security) AuthType() netlink.AuthType {
	switch s {
	case SecurityOpen:
		return netlink.AuthTypeOpen
	case SecurityWPA:
		return netlink.AuthTypeWPA
	case SecurityWPA2Mixed:
		return netlink.AuthTypeWPA2Mixed
	}
	return netlink.AuthTypeWPA2
}

// Config holds the station settings.  SSID, Passphrase, AuthThreshold and
// Country are passed through to the network stack untouched.
type Config struct {
	SSID           string        `koanf:"ssid"`
	Passphrase     string        `koanf:"passphrase"`
	MaxRetries     int           `koanf:"max_retries"`
	AuthThreshold  Security      `koanf:"auth_threshold"`
	Country        string        `koanf:"country"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// DefaultConfig returns a config with the default retry budget and a WPA2
// security threshold
func DefaultConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		AuthThreshold:  SecurityWPA2,
		ConnectTimeout: netlink.DefaultConnectTimeout,
	}
}

// Validate checks the only things the station relies on: a network name to
// join and a usable retry budget
func (c *Config) Validate() error {
	if c.SSID == "" {
		return fmt.Errorf("%w: missing SSID", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries %d is negative", ErrInvalidConfig, c.MaxRetries)
	}
	return nil
}

// ConnectParams returns the netlink parameters for a single join attempt.
// Retrying is left to the connection attempt, so the driver tries once.
func (c *Config) ConnectParams() *netlink.ConnectParams {
	return &netlink.ConnectParams{
		ConnectMode:    netlink.ConnectModeSTA,
		Ssid:           c.SSID,
		Passphrase:     c.Passphrase,
		AuthType:       c.AuthThreshold.AuthType(),
		Country:        c.Country,
		Retries:        1,
		ConnectTimeout: c.ConnectTimeout,
	}
}

// PSK derives the WPA2 pre-shared key from the passphrase and SSID
func (c *Config) PSK() []byte {
	return pbkdf2.Key([]byte(c.Passphrase), []byte(c.SSID), 4096, 32, sha1.New)
}

// Fingerprint identifies the credential in logs and reports without
// revealing it.  An open network has no fingerprint.
func (c *Config) Fingerprint() string {
	if c.Passphrase == "" {
		return ""
	}
	return hex.EncodeToString(c.PSK()[:4])
}

// GetEnv returns the value of the environment variable name, or
// defaultValue if it isn't set
func GetEnv(name string, defaultValue string) string {
	value, ok := os.LookupEnv(name)
	if !ok {
		return defaultValue
	}
	return value
}
