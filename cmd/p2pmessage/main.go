package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"

	"p2pmessage/internal/app"
	"p2pmessage/pkg/config"
	"p2pmessage/pkg/state"
	"p2pmessage/pkg/state/logger"
	"p2pmessage/pkg/state/shutdown"
)

// set build metadata
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	eff, flags, err := config.LoadFromOS(os.Args[1:])
	if err != nil {
		shutdown.Abort("failed to build effective config", err, flags.DB)
	}

	if err := config.ValidateConfig(eff); err != nil {
		shutdown.Abort("invalid configuration", err, eff.DBPath)
	}
	if flags.Validate {
		fmt.Println("config ok")
		return
	}

	// init data folders before the logger so the audit sink has a home
	if err := state.Init(eff.DBPath); err != nil {
		shutdown.Abort(fmt.Sprintf("failed to ensure state directories under %s", eff.DBPath), err, "")
	}

	logger.Init(eff.Config.Logging.Level, state.PathsVar.Logs)
	defer logger.Sync()

	logger.Info("effective_config_loaded", "source", eff.Source, "addr", eff.Addr, "db_path", eff.DBPath)
	logger.Info("system_logical_cores", "logical_cores", runtime.NumCPU())

	node, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("failed to initialize node", err, eff.DBPath)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	runErr := node.Run(ctx)

	// bounded so teardown cannot hang forever
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	if err := node.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_failed", "error", err)
	}
	if runErr != nil {
		logger.Error("node_run_failed", "error", runErr)
		logger.Sync()
		os.Exit(1)
	}
}
