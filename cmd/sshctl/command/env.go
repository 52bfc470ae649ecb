package command

import (
	"gorm.io/gorm/logger"

	"sshwire/pkg/config"
	"sshwire/pkg/storage"
)

// Env carries the root flags and opens the configuration and database on
// first use, so commands that need neither never touch the disk.
type Env struct {
	ConfigPath string
	DBPath     string
	Verbose    bool

	cfg  *config.Config
	repo *storage.Repository
}

// Config returns the loaded configuration, or the defaults without --config.
func (e *Env) Config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}

	cfg := config.Default()
	if e.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(e.ConfigPath); err != nil {
			return nil, err
		}
	}
	if e.DBPath != "" {
		cfg.Database = e.DBPath
	}

	e.cfg = cfg
	return cfg, nil
}

// Repo opens the handshake database.
func (e *Env) Repo() (*storage.Repository, error) {
	if e.repo != nil {
		return e.repo, nil
	}

	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if e.Verbose {
		level = logger.Info
	}
	repo, err := storage.Open(cfg.Database, level)
	if err != nil {
		return nil, err
	}

	e.repo = repo
	return repo, nil
}

// Close releases the database if it was opened.
func (e *Env) Close() error {
	if e.repo == nil {
		return nil
	}
	err := e.repo.Close()
	e.repo = nil
	return err
}
