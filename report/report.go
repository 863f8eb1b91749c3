// Package report publishes the outcome of a connection attempt.
package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/merliot/station"
)

// Report is the record published once an attempt is over.  It never
// carries the passphrase, only its fingerprint.
type Report struct {
	Attempt     string          `json:"attempt"`
	SSID        string          `json:"ssid"`
	Fingerprint string          `json:"psk,omitempty"`
	Outcome     station.Outcome `json:"outcome"`
	Retries     int             `json:"retries"`
	MaxRetries  int             `json:"max_retries"`
	Addr        string          `json:"addr,omitempty"`
	Time        time.Time       `json:"time"`
}

// Reporter publishes reports somewhere
type Reporter interface {
	Report(ctx context.Context, r Report) error
}

// New builds the report for attempt, which ended (or was given up on) with
// outcome
func New(cfg station.Config, attempt *station.Attempt, outcome station.Outcome) Report {
	r := Report{
		Attempt:     attempt.ID(),
		SSID:        cfg.SSID,
		Fingerprint: cfg.Fingerprint(),
		Outcome:     outcome,
		Retries:     attempt.Retries(),
		MaxRetries:  attempt.MaxRetries(),
		Time:        time.Now().UTC(),
	}
	if addr := attempt.Addr(); addr != nil {
		r.Addr = addr.String()
	}
	return r
}

func (r Report) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Multi sends a report to every reporter, returning the first error
type Multi []Reporter

func (m Multi) Report(ctx context.Context, r Report) error {
	var first error
	for _, reporter := range m {
		if err := reporter.Report(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
