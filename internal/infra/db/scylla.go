package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocql/gocql"

	"github.com/acme/engagement-compliance/internal/config"
)

// Scylla wraps the gocql session holding the decision audit log.
type Scylla struct {
	session *gocql.Session
}

// NewScylla creates a new Scylla session.
func NewScylla(cfg config.ScyllaConfig) (*Scylla, error) {
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("scylla: no hosts configured")
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}
	cluster.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: 3}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("scylla: create session: %w", err)
	}

	return &Scylla{session: session}, nil
}

// Session exposes the gocql session.
func (s *Scylla) Session() *gocql.Session {
	return s.session
}

// HealthCheck queries the local system table.
func (s *Scylla) HealthCheck(ctx context.Context) error {
	if err := s.session.Query("SELECT now() FROM system.local").WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("scylla: health: %w", err)
	}
	return nil
}

// Close shuts down the session.
func (s *Scylla) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	return nil
}

func parseConsistency(level string) gocql.Consistency {
	switch strings.ToLower(level) {
	case "one":
		return gocql.One
	case "local_quorum":
		return gocql.LocalQuorum
	case "local_one":
		return gocql.LocalOne
	case "each_quorum":
		return gocql.EachQuorum
	default:
		return gocql.Quorum
	}
}
