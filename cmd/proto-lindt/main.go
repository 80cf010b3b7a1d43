package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tomschdev/proto-lindt-ext/internal/apilinter"
	"github.com/tomschdev/proto-lindt-ext/internal/config"
	"github.com/tomschdev/proto-lindt-ext/internal/lintserver"
	"github.com/tomschdev/proto-lindt-ext/internal/suggestion"
	"github.com/tomschdev/proto-lindt-ext/internal/validation"
	"github.com/tomschdev/proto-lindt-ext/internal/watch"
)

const (
	ERROR_STATUS_CODE = 1

	VERSION = "0.1.0"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout io.Writer, errW io.Writer) (exitCode int) {
	//read & check arguments
	flags := flag.NewFlagSet("proto-lindt", flag.ExitOnError)
	var (
		configFile    string
		websocketAddr string
		watchDir      string
	)

	flags.StringVar(&configFile, "config", "", "path to the YAML configuration file")
	flags.StringVar(&websocketAddr, "ws", "", "serve LSP over WebSocket on this address (example: localhost:8305) instead of stdio")
	flags.StringVar(&watchDir, "watch", "", "validate the .proto files in this directory on change instead of serving LSP")

	if err := flags.Parse(args); err != nil {
		fmt.Fprintln(errW, "proto-lindt:", err)
		return ERROR_STATUS_CODE
	}

	if websocketAddr != "" && watchDir != "" {
		fmt.Fprintln(errW, "proto-lindt: -ws and -watch are mutually exclusive")
		return ERROR_STATUS_CODE
	}

	conf, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintln(errW, "proto-lindt:", err)
		return ERROR_STATUS_CODE
	}

	//The protocol owns stdout in stdio mode, logs always go to stderr.
	logger := zerolog.New(errW).With().Timestamp().Logger()

	linter := apilinter.Runner{
		Command:   conf.Linter.Command,
		ExtraArgs: conf.Linter.Args,
		Timeout:   conf.Linter.Timeout(),
		Logger:    logger.With().Str("src", "api-linter").Logger(),
	}

	var enricher validation.SuggestionEnricher
	if conf.Suggestions.Enabled() {
		enricher = &suggestion.HTTPClient{
			Endpoint:         conf.Suggestions.Endpoint,
			AuthToken:        conf.Suggestions.AuthToken,
			MaxRetryDuration: conf.Suggestions.MaxRetryDuration(),
			Logger:           logger.With().Str("src", "suggestions").Logger(),
		}
	}

	if watchDir != "" {
		return runWatchMode(watchDir, conf, linter, enricher, stdout, logger, errW)
	}

	serverConfig := lintserver.ServerConfiguration{
		Linter:               linter,
		Enricher:             enricher,
		DefaultSettings:      conf.Validation.DefaultSettings(),
		ClearOnLinterFailure: conf.Validation.ClearOnLinterFailure,
		DebounceDuration:     conf.Validation.DebounceDuration(),
		ServerVersion:        VERSION,
		Logger:               logger,
	}

	if websocketAddr != "" {
		serverConfig.Websocket = &lintserver.WebsocketServerConfiguration{Addr: websocketAddr}
	} else {
		serverConfig.InternalStdio = &lintserver.InternalStdio{
			StdioInput:  stdin,
			StdioOutput: stdout,
		}
	}

	if err := lintserver.StartLSPServer(serverConfig); err != nil {
		fmt.Fprintln(errW, "proto-lindt:", err)
		return ERROR_STATUS_CODE
	}
	return 0
}

func runWatchMode(
	watchDir string,
	conf config.Config,
	linter validation.LinterRunner,
	enricher validation.SuggestionEnricher,
	stdout io.Writer,
	logger zerolog.Logger,
	errW io.Writer,
) (exitCode int) {

	orchestrator := validation.NewOrchestrator(validation.OrchestratorConfig{
		Linter:               linter,
		Enricher:             enricher,
		Publisher:            watch.NewStreamPublisher(stdout),
		Settings:             validation.NewSettingsCache(conf.Validation.DefaultSettings(), nil),
		SupportsRelatedInfo:  true,
		ClearOnLinterFailure: conf.Validation.ClearOnLinterFailure,
		DebounceDuration:     conf.Validation.DebounceDuration(),
		Logger:               logger,
	})
	defer orchestrator.Close()

	watcher, err := watch.NewWatcher(watchDir, orchestrator, logger)
	if err != nil {
		fmt.Fprintln(errW, "proto-lindt:", err)
		return ERROR_STATUS_CODE
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintln(errW, "proto-lindt:", err)
		return ERROR_STATUS_CODE
	}
	return 0
}
