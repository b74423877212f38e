package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/optimaxdev/automerge-semantic-release/internal/eventloop"
	"github.com/optimaxdev/automerge-semantic-release/internal/logfields"
	"github.com/optimaxdev/automerge-semantic-release/internal/provider/github"
)

const httpShutdownTimeout = 30 * time.Second

// serve receives GitHub webhook events via HTTP and runs the automerge for
// every event that matches the configured event filter.
func serve(ctx context.Context, args *arguments) error {
	config, err := loadConfig(args.ConfigFile)
	if err != nil {
		return err
	}

	if args.DryRun {
		config.DryRun = true
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if config.HTTPListenAddr == "" {
		return errors.New("http_server_listen_addr must be defined in the config file")
	}

	if err := initLogger(config, args.Verbose, logfields.RunID(uuid.NewString())); err != nil {
		return err
	}

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("github_webhook_endpoint", config.HTTPGithubWebhookEndpoint),
		zap.String("github_webhook_secret", hide(config.GithubWebHookSecret)),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.String("prometheus_metrics_endpoint", config.HTTPMetricsEndpoint),
		zap.String("automerge_pr_label", config.AutomergePRLabel),
		zap.String("ref_prefix", config.RefPrefix),
		zap.Bool("dry_run", config.DryRun),
		zap.String("retry_timeout", config.RetryTimeout),
		zap.String("event_filter", config.EventFilter),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
	)

	filter, err := eventloop.NewFilter(config.EventFilter)
	if err != nil {
		return fmt.Errorf("parsing event_filter failed: %w", err)
	}

	wf, retryer, err := newWorkflow(config)
	if err != nil {
		return err
	}

	evLoop := eventloop.NewEventLoop(
		filter,
		wf,
		eventloop.WithRunDeferFunc(panicHandler),
	)

	gh := github.New(
		evLoop.C(),
		github.WithPayloadSecret(config.GithubWebHookSecret),
	)

	mux := http.NewServeMux()
	mux.HandleFunc(config.HTTPGithubWebhookEndpoint, gh.HTTPHandler)
	logger.Info(
		"registered github webhook event http endpoint",
		logfields.Event("github_http_handler_registered"),
		zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
	)

	if config.HTTPMetricsEndpoint != "" {
		mux.Handle(config.HTTPMetricsEndpoint, promhttp.Handler())
		logger.Info(
			"registered prometheus metrics http endpoint",
			logfields.Event("metrics_http_handler_registered"),
			zap.String("endpoint", config.HTTPMetricsEndpoint),
		)
	}

	httpServer := &http.Server{
		Addr:              config.HTTPListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))

		// no events are queued after the http server terminated
		shutdownHTTPServer(httpServer)

		logger.Debug("stopping event loop", logfields.Event("event_loop_stopping"))
		evLoop.Stop()
		retryer.Stop()
		cancelFn()

		logger.Info(
			"event loop stopped",
			logfields.Event("event_loop_stopped"),
			zap.Uint64("events_processed", evLoop.Processed()),
			zap.Uint64("runs_failed", evLoop.Failed()),
		)
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", config.HTTPListenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return nil
		}

		return fmt.Errorf("http server terminated unexpectedly: %w", err)
	})

	g.Go(func() error {
		err := evLoop.Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	})

	// stops the http server when the event loop terminated on its own
	g.Go(func() error {
		<-ctx.Done()
		shutdownHTTPServer(httpServer)
		return nil
	})

	return g.Wait()
}

func shutdownHTTPServer(srv *http.Server) {
	ctx, cancelFn := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancelFn()

	logger.Debug(
		"terminating http server",
		logfields.Event("http_server_terminating"),
		zap.Duration("shutdown_timeout", httpShutdownTimeout),
	)

	err := srv.Shutdown(ctx)
	if err != nil {
		logger.Warn(
			"shutting down http server failed",
			logfields.Event("http_server_termination_failed"),
			zap.Error(err),
		)
	}
}
