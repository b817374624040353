package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"framestudio/internal/config"
	"framestudio/internal/database"
	"framestudio/internal/metrics"
	"framestudio/internal/middleware"
	"framestudio/internal/modules/analytics"
	"framestudio/internal/modules/appointment"
	"framestudio/internal/modules/calendar"
	"framestudio/internal/modules/production"
	"framestudio/internal/modules/reminder"
	"framestudio/internal/modules/workload"
	"framestudio/internal/pkg/logger"
	"framestudio/internal/repository"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		log.Fatalf("log level: %v", err)
	}
	appLog := logger.New("api")

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	cal, err := calendar.New(cfg.Calendar)
	if err != nil {
		log.Fatalf("calendar: %v", err)
	}
	rec, err := metrics.NewPromRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	store := repository.NewStore(db, cfg.RepositoryRetry())
	wl := workload.NewEngine(store, cal, logger.New("workload"), rec)
	reminders := reminder.NewScheduler(store, cal, logger.New("reminder"))

	productionService := production.NewService(store, cal, wl, logger.New("production"), rec)
	productionHandler := production.NewHandler(productionService)

	appointmentService := appointment.NewService(store, cal, wl, reminders, logger.New("appointment"), rec)
	appointmentHandler := appointment.NewHandler(appointmentService, cal)

	analyticsService := analytics.NewService(store, cal, wl)
	analyticsHandler := analytics.NewHandler(analyticsService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Reminders.Enabled {
		notifier := reminder.LogNotifier{Log: logger.New("notifier")}
		dispatcher := reminder.NewDispatcher(store, notifier, cal.Now, cfg.Dispatcher(), logger.New("dispatcher"), rec)
		stopDispatch := dispatcher.Start(ctx)
		defer close(stopDispatch)
	}

	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorLogger(logger.New("http")), middleware.CORS(cfg.HTTP.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		productionHandler.RegisterRoutes(v1)
		appointmentHandler.RegisterRoutes(v1)
		analyticsHandler.RegisterRoutes(v1)
	}

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r}
	go func() {
		appLog.Infof("listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	appLog.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Errorf("http shutdown: %v", err)
	}
}
