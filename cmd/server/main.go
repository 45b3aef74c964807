package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pixgo-gateway/internal/app"
	"github.com/pixgo-gateway/internal/config"
	"github.com/pixgo-gateway/internal/logger"
	"github.com/pixgo-gateway/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiGreen = "\033[32m"
	ansiCyan  = "\033[36m"
)

func main() {
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "run mode: all (default), api, worker")
	flag.Parse()

	printStartupBanner()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()

	if err := cfg.Validate(); err != nil {
		stdLog.Fatalf("invalid configuration: %v", err)
	}
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		stdLog.Printf("warning: PIXGO_API_KEY is not set, payment creation will fail")
	}
	if strings.TrimSpace(cfg.Webhook.Secret) == "" && !cfg.Webhook.AllowUnsigned {
		stdLog.Printf("warning: webhook secret is not set, every webhook will be rejected")
	}

	dsn := cfg.Database.ResolveDSN()
	if err := ensureSQLiteDir(cfg.Database.Driver, dsn); err != nil {
		stdLog.Fatalf("prepare sqlite directory failed: %v", err)
	}
	db, err := models.OpenDB(models.DBOptions{
		Driver: cfg.Database.Driver,
		DSN:    dsn,
		LogSQL: cfg.Database.LogSQL,
		Pool: models.DBPoolConfig{
			MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
			MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
			ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
			ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
		},
	})
	if err != nil {
		stdLog.Fatalf("database init failed: %v", err)
	}
	defer func() {
		if err := models.CloseDB(db); err != nil {
			logger.Warnw("database_close_failed", "error", err)
		}
	}()

	if err := models.AutoMigrate(db); err != nil {
		stdLog.Fatalf("database migration failed: %v", err)
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.Run(app.Options{
		Config:  cfg,
		DB:      db,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	}); err != nil {
		logger.Errorw("app_run_failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

// ensureSQLiteDir creates the parent directory of a file based sqlite DSN
func ensureSQLiteDir(driver, dsn string) error {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver != "" && driver != "sqlite" {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" || path == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func printStartupBanner() {
	fmt.Println(ansiCyan + "██████╗ ██╗██╗  ██╗ ██████╗  ██████╗ " + ansiReset)
	fmt.Println(ansiCyan + "██╔══██╗██║╚██╗██╔╝██╔════╝ ██╔═══██╗" + ansiReset)
	fmt.Println(ansiCyan + "██████╔╝██║ ╚███╔╝ ██║  ███╗██║   ██║" + ansiReset)
	fmt.Println(ansiCyan + "██╔═══╝ ██║ ██╔██╗ ██║   ██║██║   ██║" + ansiReset)
	fmt.Println(ansiCyan + "██║     ██║██╔╝ ██╗╚██████╔╝╚██████╔╝" + ansiReset)
	fmt.Println(ansiCyan + "╚═╝     ╚═╝╚═╝  ╚═╝ ╚═════╝  ╚═════╝ " + ansiReset)
	fmt.Println(ansiGreen + ansiBold + "Pix payment gateway" + ansiReset)
	fmt.Println(ansiDim + "--------------------------------------------------------------" + ansiReset)
}
