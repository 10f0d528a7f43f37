// Command vhald serves a simulated vendor driver over gRPC on a unix socket,
// standing in for an out-of-process driver in front of the remote backend.
//
// SIGUSR1 kills the simulated driver and SIGUSR2 revives it, which lets the
// daemon's reconnect path be exercised by hand.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"google.golang.org/grpc"

	"haptics-go/internal/logging"
	"haptics-go/services/haptics/backends/remote"
	"haptics-go/services/haptics/backends/sim"
	"haptics-go/services/haptics/hal"
)

func main() {
	var (
		sock      = flag.String("socket", "/run/haptics/vhal.sock", "unix socket path")
		version   = flag.String("version", "aidl", "driver generation to simulate (1.0 .. 1.3, aidl)")
		ambiguous = flag.Bool("ambiguous", false, "report failures as possibly unsupported")
	)
	flag.Parse()

	logging.ConfigureRuntime()
	log := logging.Component("vhald")

	v, ok := hal.ParseVersion(*version)
	if !ok {
		log.Fatal().Str("version", *version).Msg("unknown driver version")
	}
	p := sim.DefaultProfile(v)
	p.Ambiguous = *ambiguous
	drv := sim.New(p)

	if err := os.MkdirAll(filepath.Dir(*sock), 0o755); err != nil {
		log.Fatal().Err(err).Msg("mkdir")
	}
	if _, err := os.Stat(*sock); err == nil {
		_ = os.Remove(*sock)
	}
	l, err := net.Listen("unix", *sock)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	defer l.Close()
	_ = os.Chmod(*sock, 0o766)

	gs := grpc.NewServer()
	remote.NewServer(drv, logging.Component("remote")).Register(gs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go faults(ctx, drv)

	log.Info().Str("socket", *sock).Str("version", v.String()).Msg("simulated driver listening")
	errc := make(chan error, 1)
	go func() { errc <- gs.Serve(l) }()
	select {
	case <-ctx.Done():
		gs.GracefulStop()
	case err := <-errc:
		if err != nil {
			log.Error().Err(err).Msg("grpc serve")
		}
	}
	log.Info().Msg("vhald stopped")
}

func faults(ctx context.Context, drv *sim.Backend) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)
	log := logging.Component("vhald")
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sigs:
			if s == syscall.SIGUSR1 {
				drv.Kill()
				log.Warn().Msg("driver killed")
			} else {
				drv.Revive()
				log.Info().Msg("driver revived")
			}
		}
	}
}
