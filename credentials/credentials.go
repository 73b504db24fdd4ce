// Package credentials loads the key/certificate pair used by the TLS
// responder. A missing pair is an expected outcome and is reported as an
// Absent result rather than an error.
package credentials

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const (
	DefaultKeyPath  = "../keys/key.pem"
	DefaultCertPath = "../keys/cert.pem"
)

var (
	ErrAbsent     = errors.New("credentials absent")
	ErrUnreadable = errors.New("credentials unreadable")
	ErrMalformed  = errors.New("credentials malformed")
)

type Status int

const (
	Absent Status = iota
	Present
)

func (s Status) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Result is the outcome of the startup credential check. Key and Cert are
// only set when Status is Present; Missing lists the paths that were not
// found when Status is Absent.
type Result struct {
	Status  Status
	Key     []byte
	Cert    []byte
	Missing []string
}

// Load checks that both files exist and reads them fully. A file that
// disappears or cannot be read after the existence check yields an error
// wrapping ErrUnreadable.
func Load(keyPath, certPath string) (Result, error) {
	var missing []string
	for _, p := range []string{keyPath, certPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				missing = append(missing, p)
				continue
			}
			return Result{}, fmt.Errorf("%w: %s: %w", ErrUnreadable, p, err)
		}
	}
	if len(missing) > 0 {
		return Result{Status: Absent, Missing: missing}, nil
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrUnreadable, keyPath, err)
	}
	cert, err := os.ReadFile(certPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrUnreadable, certPath, err)
	}
	return Result{Status: Present, Key: key, Cert: cert}, nil
}

// TLSConfig builds a server TLS configuration from the loaded pair.
func (r Result) TLSConfig() (*tls.Config, error) {
	if r.Status != Present {
		return nil, ErrAbsent
	}
	pair, err := tls.X509KeyPair(r.Cert, r.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
