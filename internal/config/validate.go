package config

import (
	"errors"
	"fmt"

	"github.com/inovacc/gitsafe/internal/model"
	"github.com/robfig/cron/v3"
)

// CronParser parses the six field expressions used by the scheduler.
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks settings that would otherwise fail later at runtime.
func Validate(cfg *model.Config) error {
	var errs []error

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}

	if cfg.Server.EncryptionKey == "" {
		errs = append(errs, errors.New("server.encryption_key must not be empty"))
	}

	if _, err := CronParser.Parse(cfg.Scheduler.CronExpression); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.cron_expression %q: %w", cfg.Scheduler.CronExpression, err))
	}

	seen := make(map[string]struct{}, len(cfg.Repositories))
	for _, repo := range cfg.Repositories {
		if repo.ID == "" {
			errs = append(errs, fmt.Errorf("repository %q has an empty id", repo.URL))
			continue
		}

		if _, dup := seen[repo.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate repository id %q", repo.ID))
		}

		seen[repo.ID] = struct{}{}
	}

	for id, cred := range cfg.Credentials {
		if err := cred.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("credential %q: %w", id, err))
		}
	}

	return errors.Join(errs...)
}
