// Command declaratii-server serves the declaration validation API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jemish-virani/declaratii-anaf/internal/app"
	"github.com/jemish-virani/declaratii-anaf/internal/config"
	"github.com/jemish-virani/declaratii-anaf/internal/httpapi"
	"github.com/jemish-virani/declaratii-anaf/pkg/pipeline"
	"github.com/jemish-virani/declaratii-anaf/pkg/plugin"
)

func main() {
	configPath := flag.String("config", "", "configuration file (default "+config.DefaultFile+" when present)")
	printConfig := flag.Bool("print-config", false, "print a sample configuration and exit")
	tracePhases := flag.Bool("trace", false, "log every pipeline phase transition")
	flag.Parse()

	if *printConfig {
		fmt.Print(config.DefaultYAML)
		return
	}

	logger := log.New(os.Stderr, "declaratii: ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, *configPath, *tracePhases, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func serve(ctx context.Context, configPath string, trace bool, logger *log.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var opts []app.Option
	if trace {
		opts = append(opts, app.WithObserver(func(phase pipeline.Phase, id plugin.TypeID) {
			logger.Printf("pipeline: %s %s", id, phase)
		}))
	}
	svc, err := app.Open(cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	types := svc.Types()
	if len(types) == 0 {
		logger.Printf("no declaration types configured; every request will be answered as unknown")
	} else {
		logger.Printf("declaration types: %v", types)
	}

	api, err := httpapi.New(ctx, svc, httpapi.WithLogger(logger))
	if err != nil {
		return err
	}
	handler, err := api.Handler()
	if err != nil {
		return err
	}

	srv := httpapi.NewServer(cfg.Listen, handler, logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Printf("serving %s (api %s)", srv.BaseURL(), api.Description().Version())

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpapi.DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
