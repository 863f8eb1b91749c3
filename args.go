package station

import (
	"flag"
	"fmt"
	"io"

	"github.com/google/shlex"
)

// ParseArgs overrides cfg from a shell-quoted argument string, e.g.
//
//	-ssid "MCC Corp" -passphrase secret -max-retries 3 -auth wpa2
//
// Firmware builds have no command line, so the string is injected at link
// time with -ldflags "-X main.args=...".
func ParseArgs(cfg *Config, args string) error {
	words, err := shlex.Split(args)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}

	fs := flag.NewFlagSet("station", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.SSID, "ssid", cfg.SSID, "access point network name")
	fs.StringVar(&cfg.Passphrase, "passphrase", cfg.Passphrase, "access point passphrase")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "reconnects after the first connect request")
	fs.TextVar(&cfg.AuthThreshold, "auth", cfg.AuthThreshold, "weakest accepted security (open, wpa, wpa2-mixed, wpa2)")
	fs.StringVar(&cfg.Country, "country", cfg.Country, "two letter wifi country code")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "timeout for one join")

	if err := fs.Parse(words); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", ErrInvalidConfig, fs.Arg(0))
	}
	return nil
}
