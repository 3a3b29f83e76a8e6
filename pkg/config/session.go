package config

import (
	"fmt"

	"github.com/agentfs/agentfs/internal/logger"
	"github.com/agentfs/agentfs/pkg/metrics"
	"github.com/agentfs/agentfs/pkg/vfs"
)

// InitializeSession creates a fully configured filesystem session from the
// provided configuration.
//
// This function orchestrates the complete initialization process:
//  1. Parses every mount spec from cfg.Mounts
//  2. Opens the record store behind each managed mount
//  3. Builds the session with its mount table and empty fd table
//
// Parameters:
//   - cfg: Complete configuration loaded from config file
//   - vfsMetrics: Operation metrics recorder, nil to disable collection
//   - storeMetrics: Transaction metrics recorder, nil to disable collection
//
// Returns:
//   - *vfs.Session: Ready-to-dispatch session
//   - error: If a mount spec is malformed or a store cannot be opened
func InitializeSession(cfg *Config, vfsMetrics metrics.VFSMetrics, storeMetrics metrics.StoreMetrics) (*vfs.Session, error) {
	logger.Debug("Initializing session from configuration")

	if len(cfg.Mounts) == 0 {
		return nil, fmt.Errorf("at least one mount must be configured")
	}

	specs := make([]*vfs.MountSpec, 0, len(cfg.Mounts))
	for _, raw := range cfg.Mounts {
		spec, err := vfs.ParseMountSpec(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid mount spec %q: %w", raw, err)
		}
		specs = append(specs, spec)
	}

	session, err := vfs.NewSession(vfs.SessionConfig{
		Mounts:       specs,
		Store:        cfg.Database,
		Trace:        cfg.Trace,
		Metrics:      vfsMetrics,
		StoreMetrics: storeMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Info("Session initialized", "mounts", len(specs), "trace", cfg.Trace)
	return session, nil
}
