package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"framestudio/internal/config"
	"framestudio/internal/database"
	"framestudio/internal/metrics"
	"framestudio/internal/modules/appointment"
	"framestudio/internal/modules/calendar"
	"framestudio/internal/modules/production"
	"framestudio/internal/modules/reminder"
	"framestudio/internal/modules/workload"
	"framestudio/internal/pkg/logger"
	"framestudio/internal/repository"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "schedulerctl",
	Short:         "Maintenance commands for the framing shop scheduler",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv("CONFIG_FILE"), "configuration file (yaml or json)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

type deps struct {
	cfg         *config.Config
	cal         *calendar.Calendar
	store       *repository.Store
	workload    *workload.Engine
	production  *production.Service
	appointment *appointment.Service
	dispatcher  *reminder.Dispatcher
	log         logger.Logger
}

func open(component string) (*deps, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	cal, err := calendar.New(cfg.Calendar)
	if err != nil {
		return nil, err
	}

	log := logger.New(component)
	store := repository.NewStore(db, cfg.RepositoryRetry())
	wl := workload.NewEngine(store, cal, log, metrics.Nop{})
	reminders := reminder.NewScheduler(store, cal, log)
	return &deps{
		cfg:         cfg,
		cal:         cal,
		store:       store,
		workload:    wl,
		production:  production.NewService(store, cal, wl, log, metrics.Nop{}),
		appointment: appointment.NewService(store, cal, wl, reminders, log, metrics.Nop{}),
		dispatcher:  reminder.NewDispatcher(store, reminder.LogNotifier{Log: log}, cal.Now, cfg.Dispatcher(), log, metrics.Nop{}),
		log:         log,
	}, nil
}
