package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pot-code/enlingo/internal/content"
	"github.com/pot-code/enlingo/internal/course"
	infra "github.com/pot-code/enlingo/internal/infrastructure"
	"github.com/pot-code/enlingo/internal/infrastructure/driver"
	"github.com/pot-code/enlingo/internal/infrastructure/logging"
	"github.com/pot-code/enlingo/internal/infrastructure/uuid"
	"github.com/pot-code/enlingo/internal/infrastructure/validate"
	ihttp "github.com/pot-code/enlingo/internal/interfaces/http"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// maximum exercise set fetches running at once while warming the cache
const prefetchLimit = 4

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [flags]",
		Short: "Serve the progression API",
		// flags belong to the app config, see infra.LoadConfig
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE:               runServe,
	}
}

// loadConfig parse the app config, a nil config without error means help was printed
func loadConfig(args []string) (*infra.AppConfig, error) {
	option, err := infra.InitConfig(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil, nil
	}
	return option, err
}

func runServe(cmd *cobra.Command, args []string) error {
	option, err := loadConfig(args)
	if err != nil || option == nil {
		return err
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := driver.GetKVStore(&driver.KVConfig{
		Driver:   option.KVStore.Driver,
		Host:     option.KVStore.Host,
		Port:     option.KVStore.Port,
		Password: option.KVStore.Password,
		Path:     option.KVStore.Path,
	})
	if err != nil {
		return fmt.Errorf("failed to create kv store: %w", err)
	}
	defer kv.Close()
	probes := []ihttp.Pinger{kv}

	var origin course.ContentRepository
	switch option.Content.Source {
	case "http":
		origin, err = content.NewHTTPRepository(content.HTTPConfig{
			BaseURL: option.Content.BaseURL,
			Timeout: option.Content.Timeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create content client: %w", err)
		}
	default:
		dbConn, err := driver.GetDBConnection(&driver.DBConfig{
			User:     option.Database.User,
			Password: option.Database.Password,
			MaxConn:  option.Database.MaxConn,
			Protocol: option.Database.Protocol,
			Driver:   option.Database.Driver,
			Host:     option.Database.Host,
			Path:     option.Database.Path,
			Port:     option.Database.Port,
			Query:    option.Database.Query,
			Schema:   option.Database.Schema,
		})
		if err != nil {
			return fmt.Errorf("failed to create DB connection: %w", err)
		}
		defer dbConn.Close(context.Background())
		logger.Debug("Create content db connection", zap.String("db.driver", option.Database.Driver),
			zap.String("db.schema", option.Database.Schema),
			zap.String("db.host", option.Database.Host),
		)
		origin = content.NewSQLRepository(dbConn)
		probes = append(probes, dbConn)
	}

	validator := validate.NewValidator(option.Content.Locale)
	cache := content.NewCache(origin, option.Content.ExerciseTTL, validator)

	UUIDGenerator, err := uuid.NewNanoIDGenerator(option.Security.IDLength)
	if err != nil {
		return fmt.Errorf("failed to create id generator: %w", err)
	}
	tracker := course.NewTracker(kv, cache, UUIDGenerator, logger, course.CourseID(option.Course.Default))

	prefetchOnLoad(ctx, tracker, cache, logger)
	go func() {
		if err := tracker.Restore(ctx); err != nil {
			logger.Error("Failed to restore course", zap.Error(err))
		}
	}()

	return ihttp.Serve(ctx, option, &ihttp.Dependencies{
		Tracker:   tracker,
		Exercises: cache,
		Validator: validator,
		Probes:    probes,
	}, logger)
}

// prefetchOnLoad warm the exercise sets of every course once its curriculum is loaded
func prefetchOnLoad(ctx context.Context, tracker *course.Tracker, cache *content.Cache, logger *zap.Logger) {
	var (
		mu       sync.Mutex
		lastFlow string
	)
	tracker.Subscribe(func(snap course.Snapshot) {
		if snap.Status != course.StatusOK {
			return
		}
		mu.Lock()
		if snap.FlowID == lastFlow {
			mu.Unlock()
			return
		}
		lastFlow = snap.FlowID
		mu.Unlock()

		go func() {
			flowLogger := logger.With(zap.String("course.id", string(snap.CourseID)), zap.String("flow.id", snap.FlowID))
			if err := cache.Prefetch(logging.SetLoggerInContext(ctx, flowLogger), snap.CourseID, prefetchLimit); err != nil {
				flowLogger.Warn("Failed to prefetch exercise sets", zap.Error(err))
			}
		}()
	})
}
