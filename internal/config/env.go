package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inovacc/gitsafe/internal/model"
)

// EnvPrefix starts every override variable. Sections and fields are
// separated by a double underscore, e.g. GITSAFE__SERVER__PORT=9090.
const EnvPrefix = "GITSAFE__"

type setter func(cfg *model.Config, value string) error

var overrides = map[string]setter{
	"SERVER__HOST":       func(c *model.Config, v string) error { c.Server.Host = v; return nil },
	"SERVER__PORT":       intSetter(func(c *model.Config) *int { return &c.Server.Port }),
	"SERVER__JWT_SECRET": func(c *model.Config, v string) error { c.Server.JWTSecret = v; return nil },
	"SERVER__ENCRYPTION_KEY": func(c *model.Config, v string) error {
		c.Server.EncryptionKey = v
		return nil
	},
	"SERVER__ERROR_WEBHOOKS": func(c *model.Config, v string) error {
		c.Server.ErrorWebhooks = splitList(v)
		return nil
	},
	"SERVER__SYNC_ATTEMPTS":    intSetter(func(c *model.Config) *int { return &c.Server.SyncAttempts }),
	"SERVER__SYNC_CONCURRENCY": intSetter(func(c *model.Config) *int { return &c.Server.SyncConcurrency }),
	"STORAGE__ARCHIVE_DIR":     func(c *model.Config, v string) error { c.Storage.ArchiveDir = v; return nil },
	"STORAGE__COMPACT": func(c *model.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}

		c.Storage.Compact = b

		return nil
	},
	"STORAGE__KNOWN_HOSTS":       func(c *model.Config, v string) error { c.Storage.KnownHosts = v; return nil },
	"SCHEDULER__CRON_EXPRESSION": func(c *model.Config, v string) error { c.Scheduler.CronExpression = v; return nil },
}

func intSetter(field func(*model.Config) *int) setter {
	return func(c *model.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}

		*field(c) = n

		return nil
	}
}

func splitList(v string) []string {
	var out []string

	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// ApplyEnv applies GITSAFE__ overrides found in environ (KEY=VALUE pairs).
// Unknown keys are ignored; malformed values are an error.
func ApplyEnv(cfg *model.Config, environ []string) error {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}

		name := strings.ToUpper(strings.TrimPrefix(key, EnvPrefix))

		set, known := overrides[name]
		if !known {
			continue
		}

		if err := set(cfg, value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	return nil
}
