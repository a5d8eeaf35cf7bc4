// Package wire provides dependency injection for the guild application.
// It creates singleton services with lazy initialization.
package wire

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/guild/internal/adapters/contractfs"
	"github.com/example/guild/internal/adapters/filesystem"
	"github.com/example/guild/internal/adapters/maildir"
	"github.com/example/guild/internal/adapters/registryfs"
	"github.com/example/guild/internal/adapters/runner"
	"github.com/example/guild/internal/adapters/tmux"
	"github.com/example/guild/internal/app"
	"github.com/example/guild/internal/config"
	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/ports/secondary"
	"github.com/example/guild/internal/watcher"
)

var (
	cfg             *config.Config
	logger          zerolog.Logger
	mailboxStore    *maildir.Store
	mailService     primary.MailService
	contractService primary.ContractService
	registryService primary.RegistryService
	orchestrator    primary.Orchestrator
	once            sync.Once
)

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the application logger.
func Logger() zerolog.Logger {
	once.Do(initServices)
	return logger
}

// MailService returns the singleton MailService instance.
func MailService() primary.MailService {
	once.Do(initServices)
	return mailService
}

// ContractService returns the singleton ContractService instance.
func ContractService() primary.ContractService {
	once.Do(initServices)
	return contractService
}

// RegistryService returns the singleton RegistryService instance.
func RegistryService() primary.RegistryService {
	once.Do(initServices)
	return registryService
}

// Orchestrator returns the singleton Orchestrator instance.
func Orchestrator() primary.Orchestrator {
	once.Do(initServices)
	return orchestrator
}

// Watcher returns a new inbox watcher over the configured mailbox root.
func Watcher() *watcher.Watcher {
	once.Do(initServices)
	return watcher.New(mailboxStore.Root(), mailboxStore, orchestrator, cfg.PollInterval.Std(), logger)
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	home, err := config.ResolveHome()
	if err != nil {
		log.Fatalf("failed to resolve guild home: %v", err)
	}
	cfg, err = config.Load(home)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	// Create store adapters (secondary ports) on the guild home layout
	mailboxStore = maildir.NewStore(cfg.MailboxesDir())
	contractStore := contractfs.NewStore(cfg.ContractsDir())
	registryStore := registryfs.NewStore(cfg.RegistryDir())

	// Interactive agents run inside tmux so a human can attach; everything
	// else is a plain child process. Missing tmux degrades instead of
	// failing: interactive entries then spawn like any other worker.
	procRunner := runner.New()
	var interactive secondary.ProcessRunner = procRunner
	if tmuxRunner, err := tmux.New(); err == nil {
		interactive = tmuxRunner
	} else {
		logger.Warn().Err(err).Msg("tmux unavailable, interactive agents run headless")
	}

	// Create services (primary ports implementation)
	mailService = app.NewMailService(mailboxStore, logger)
	contractService = app.NewContractService(contractStore, mailService, logger)
	registryService = app.NewRegistryService(registryStore, mailboxStore, filesystem.NewWorkspaceScaffolder(), logger)
	orchestrator = app.NewOrchestratorService(registryStore, mailboxStore, procRunner, interactive,
		app.OrchestratorOptions{
			WorkerCommand: cfg.WorkerCommand,
			SpawnRetries:  cfg.SpawnRetries,
			SpawnBackoff:  cfg.SpawnBackoff.Std(),
			GracePeriod:   cfg.GracePeriod.Std(),
		}, logger)
}
