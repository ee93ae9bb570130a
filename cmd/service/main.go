package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gitlab.com/dirk.krummacker/contacts-api/internal/config"
	"gitlab.com/dirk.krummacker/contacts-api/internal/contacts"
	"gitlab.com/dirk.krummacker/contacts-api/internal/filestore"
	"gitlab.com/dirk.krummacker/contacts-api/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-api/internal/repository"
	"gitlab.com/dirk.krummacker/contacts-api/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Usage example on the command line:
// > PORT=8080 DBHOST=localhost DBUSER=dirk DBPWD=bullo92 GIN_MODE=release GIN_LOGGING=off go run main.go -config=../../config/local.yaml
func main() {
	configPath := flag.String("config", "config/local.yaml", "the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not load configuration:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not create logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("service failed", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Debug("configuration loaded", zap.Stringer("config", cfg))

	sqlDB, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	repo, err := repository.New(sqlDB)
	if err != nil {
		sqlDB.Close()
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Warn("could not close repository", zap.Error(err))
		}
	}()

	files, err := filestore.New(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	opts := service.Options{HTTP: cfg.HTTP}
	if local, ok := files.(*filestore.Local); ok {
		opts.ImageDir = local.Dir()
	}
	if gin.Mode() == gin.DebugMode && cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := service.SetupHttpRouter(contacts.NewManager(repo, files, log), opts, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", server.Addr), zap.String("storage", cfg.Storage.Backend))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not shut down http server: %w", err)
	}
	return nil
}
