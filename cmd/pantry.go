package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/indieinfra/pantry/config"
	"github.com/indieinfra/pantry/server"
	"github.com/indieinfra/pantry/server/util"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("pantry", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configFile := flags.String("config", "config.yml", "Path to the configuration file (i.e., /etc/pantry.yaml)")
	reconcile := flags.Bool("reconcile", false, "Report local files and index records that disagree, then exit")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if len(strings.Trim(*configFile, " ")) == 0 {
		flags.Usage()
		return 1
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "pantry: failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := util.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(stderr, "pantry: failed to build logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if *reconcile {
		return runReconcile(cfg, logger, stdout)
	}

	logger.Info("starting http server")
	if err := server.StartServer(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		return 1
	}

	return 0
}

func runReconcile(cfg *config.Config, logger *zap.Logger, stdout io.Writer) int {
	st, err := server.NewState(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", zap.Error(err))
		return 1
	}
	defer server.Cleanup(st)

	report, err := st.Registry.ReconcileLocal(context.Background())
	if err != nil {
		logger.Error("reconcile failed", zap.Error(err))
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("failed to write report", zap.Error(err))
		return 1
	}

	return 0
}
