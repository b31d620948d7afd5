package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/certs"
	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/service"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverHTTP     = "http"
)

// Config selects and configures a backend.
type Config struct {
	Driver  string
	Path    string
	DSN     string
	URL     string
	Token   string
	// CAFile is a PEM bundle to trust for an https URL.
	CAFile  string
	Timeout time.Duration
	Retry   common.RetryOptions
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (service.DocumentStore, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: remote.path", common.ErrMissingConfig)
		}
		s, err := NewSQLiteStore(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("%w: remote.dsn", common.ErrMissingConfig)
		}
		s, err := NewPostgresStore(ctx, cfg.DSN, cfg.Retry)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("%w: remote.url", common.ErrMissingConfig)
		}
		var opts []ClientOption
		if cfg.CAFile != "" {
			pool, err := certs.LoadPool(cfg.CAFile)
			if err != nil {
				return nil, fmt.Errorf("%w: remote.ca_file: %w", common.ErrInvalidConfig, err)
			}
			opts = append(opts, WithRootCAs(pool))
		}
		c, err := NewClient(cfg.URL, cfg.Token, cfg.Timeout, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown remote driver %q", common.ErrInvalidConfig, cfg.Driver)
	}
}
