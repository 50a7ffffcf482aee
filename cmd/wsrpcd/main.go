// Command wsrpcd serves the wsrpc JSON-RPC server over WebSocket or stdio.
//
// Configuration comes from the environment and an optional .env file; see
// the config package for the recognized variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/wsrpc/config"
	"github.com/felixgeelhaar/wsrpc/discovery"
	"github.com/felixgeelhaar/wsrpc/logging"
	"github.com/felixgeelhaar/wsrpc/middleware"
	"github.com/felixgeelhaar/wsrpc/server"
	"github.com/felixgeelhaar/wsrpc/transport"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "wsrpcd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Backend: cfg.LogBackend,
		Level:   level,
		Format:  cfg.LogFormat,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(logger) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := setupTelemetry(cfg.ServiceName)
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(tctx); err != nil {
			logger.Warn("telemetry shutdown failed", logging.Err(err))
		}
	}()

	srv := server.New(
		server.Info{Name: cfg.ServiceName, Version: version},
		server.WithLogger(logger),
		server.WithMiddleware(buildMiddleware(cfg, logger)...),
	)

	logger.Info("starting",
		logging.F("version", version),
		logging.F("transport", cfg.Transport),
		logging.F("methods", srv.Methods()),
	)

	if cfg.Transport == config.TransportStdio {
		return transport.NewStdio(transport.WithStdioLogger(logger)).Serve(ctx, srv)
	}
	return serveWebSocket(ctx, cfg, srv, logger)
}

func buildMiddleware(cfg config.Config, logger logging.Logger) []middleware.Middleware {
	mw := []middleware.Middleware{
		middleware.RecoverWithLogger(logger),
		middleware.RequestID(),
		middleware.OTel(middleware.WithOTelServiceName(cfg.ServiceName)),
	}
	if cfg.RateLimited() {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = cfg.RateLimitRPS
		}
		mw = append(mw, middleware.RateLimitByMethod(cfg.RateLimitRPS, burst,
			middleware.WithRateLimitLogger(logger),
		))
	}
	mw = append(mw,
		middleware.SizeLimit(cfg.MaxBodySize, middleware.WithSizeLimitLogger(logger)),
		middleware.Timeout(cfg.RequestTimeout),
		middleware.Logging(logger),
	)
	return mw
}

func serveWebSocket(ctx context.Context, cfg config.Config, srv *server.Server, logger logging.Logger) error {
	opts := []transport.WebSocketOption{
		transport.WithPath(cfg.WSPath),
		transport.WithLogger(logger),
		transport.WithVersion(version),
		transport.WithReadLimit(cfg.MaxBodySize),
		transport.WithAllowedOrigins(cfg.AllowedOrigins...),
		transport.WithShutdownTimeout(cfg.ShutdownTimeout),
	}
	if cfg.ConnMessagesPerSec > 0 {
		opts = append(opts, transport.WithConnectionRateLimit(cfg.ConnMessagesPerSec, cfg.ConnMessageBurst))
	}
	ws := transport.NewWebSocket(cfg.Address(), opts...)

	announcer, err := newAnnouncer(cfg, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ws.Serve(gctx, srv)
	})
	g.Go(func() error {
		return announce(gctx, announcer, ws, srv, logger)
	})

	err = g.Wait()
	logger.Info("stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newAnnouncer(cfg config.Config, logger logging.Logger) (discovery.Announcer, error) {
	if !cfg.Announce() {
		return discovery.Nop{}, nil
	}
	return discovery.NewEtcd(discovery.EtcdConfig{
		Endpoints: cfg.EtcdEndpoints,
		Service:   cfg.ServiceName,
		TTL:       cfg.AnnounceTTL,
		Logger:    logger,
	})
}

// announce publishes the instance once the listener is bound and
// withdraws it when ctx ends.
func announce(ctx context.Context, a discovery.Announcer, ws *transport.WebSocket, srv *server.Server, logger logging.Logger) error {
	select {
	case <-ctx.Done():
		return nil
	case <-ws.Ready():
	}

	inst := discovery.Instance{Addr: ws.Addr(), Version: version, Methods: srv.Methods()}
	if err := a.Announce(ctx, inst); err != nil {
		logger.Error("announce failed", logging.Err(err))
	}

	<-ctx.Done()

	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(cctx); err != nil {
		logger.Warn("withdraw failed", logging.Err(err))
	}
	return nil
}

// setupTelemetry installs SDK tracer and meter providers as the globals
// read by the OTel middleware.
func setupTelemetry(service string) func(context.Context) error {
	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.version", version),
	)
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}
}
