package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alquimista/studio/internal/session"
	"github.com/alquimista/studio/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the configuration file and initializes the session store.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	r.logger.Info("initializing session store", "path", config.Session.Path)

	db, err := shared.NewDatabase(config.Session.Path)
	if err != nil {
		return fmt.Errorf("failed to create session database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := session.NewStore(db).Init(); err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	r.logger.Infof("setup complete for session store: %v", config.Session.Path)
	r.writePlain("✓ Configuração pronta\n")
	r.writePlain("Edite %s com o endereço do estúdio e rode 'alq auth login'\n", configPath)
	return nil
}
