package commands

import (
	"fmt"
	"strings"

	"github.com/agentfs/agentfs/pkg/config"
	"github.com/agentfs/agentfs/pkg/vfs/store"
)

// resolveDBPath returns the SQLite database to inspect: the --db flag when
// given, otherwise the first managed mount in the configuration.
func resolveDBPath(dbFlag string) (string, error) {
	if dbFlag != "" {
		return dbFlag, nil
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return "", err
	}

	for _, raw := range cfg.Mounts {
		kind, src := mountKindAndSrc(raw)
		if kind == "managed" && src != "" {
			return src, nil
		}
	}
	return "", fmt.Errorf("no managed mount in configuration; pass --db to select a database")
}

// mountKindAndSrc pulls type and src out of a raw mount spec without the
// full validation ParseMountSpec applies (bind sources may not exist on
// this machine when inspecting a copied database).
func mountKindAndSrc(raw string) (kind, src string) {
	for _, part := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "type":
			kind = strings.TrimSpace(value)
		case "src", "source":
			src = strings.TrimSpace(value)
		}
	}
	return kind, src
}

// openStore opens the record store for CLI inspection, applying default
// busy handling.
func openStore(dbFlag string) (*store.Store, error) {
	path, err := resolveDBPath(dbFlag)
	if err != nil {
		return nil, err
	}
	return store.Open(&store.Config{Path: path})
}
