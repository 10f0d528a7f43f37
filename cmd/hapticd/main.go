// Command hapticd hosts the haptics service with an HTTP control surface.
//
// Actuators come from a TOML file. On hosts without real I²C the named buses
// are emulated with a DRV2605L attached, so the lra backend can be exercised
// end to end. SIGHUP reloads the file; new actuators are added, existing ones
// are kept.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"haptics-go/bus"
	"haptics-go/internal/logging"
	"haptics-go/services/haptics"
	_ "haptics-go/services/haptics/backends/lra"
	_ "haptics-go/services/haptics/backends/remote"
	_ "haptics-go/services/haptics/backends/sim"
	"haptics-go/services/haptics/config"
	"haptics-go/services/haptics/httpapi"
	"haptics-go/services/haptics/platform"
	"haptics-go/services/haptics/service"
)

func main() {
	var (
		path   = flag.String("config", "/etc/haptics/hapticd.toml", "TOML config file")
		listen = flag.String("listen", "", "HTTP listen address (overrides config)")
		origin = flag.String("cors", "", "comma-separated CORS origins")
	)
	flag.Parse()

	logging.ConfigureRuntime()
	log := logging.Component("hapticd")

	cfg, err := config.Load(*path)
	if err != nil {
		log.Fatal().Err(err).Str("path", *path).Msg("config")
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	buses := platform.Buses{"i2c0": platform.EmulatedDRV2605L()}
	for _, name := range cfg.Buses {
		if _, ok := buses[name]; !ok {
			buses[name] = platform.EmulatedDRV2605L()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bus.NewBus(32)
	svc := service.New(b.NewConnection("haptics"), service.Options{
		Res:     buses.Resources(),
		Logger:  logging.Component("haptics"),
		Metrics: haptics.DefaultMetrics(),
	})
	svcDone := make(chan struct{})
	go func() {
		defer close(svcDone)
		svc.Run(ctx)
	}()

	cfgConn := b.NewConnection("config")
	config.Publish(cfgConn, cfg)
	go reloadOnHangup(ctx, *path, cfgConn, log)

	api := httpapi.New(b.NewConnection("http"), httpapi.Options{
		Logger:      logging.Component("http"),
		CORSOrigins: splitComma(*origin),
	})
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info().Str("listen", cfg.Listen).Int("actuators", len(cfg.Haptics.Actuators)).Msg("hapticd started")

	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	<-svcDone
	log.Info().Msg("hapticd stopped")
}

func reloadOnHangup(ctx context.Context, path string, conn *bus.Connection, log zerolog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load(path)
			if err != nil {
				log.Error().Err(err).Msg("reload failed, keeping current config")
				continue
			}
			config.Publish(conn, cfg)
			log.Info().Int("actuators", len(cfg.Haptics.Actuators)).Msg("config reloaded")
		}
	}
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
