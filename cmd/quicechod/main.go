// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/pkg/profile"

	"github.com/dtn7/quicecho/internal/quicecho"
)

// waitSigint blocks until SIGINT arrives, dumping a diagnostics snapshot to
// stderr on every SIGUSR1 received in the meantime.
func waitSigint(srv *quicecho.Server) {
	interrupt := make(chan os.Signal, 1)
	dump := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	signal.Notify(dump, syscall.SIGUSR1)

	for {
		select {
		case <-interrupt:
			return
		case <-dump:
			if err := srv.WriteDiagnostics(os.Stderr); err != nil {
				log.WithError(err).Warn("failed to write diagnostics snapshot")
			}
		}
	}
}

func main() {
	profiling := flag.Bool("profile", false, "enable CPU profiling")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("Usage: %s [-profile] configuration.toml", os.Args[0])
	}

	cfg, creds, diagnosticsAddr, err := parseConfig(flag.Arg(0))
	if err != nil {
		log.WithError(err).Fatal("Failed to parse config")
	}

	if *profiling {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}

	srv, err := quicecho.New(cfg, creds)
	if err != nil {
		log.WithError(err).Fatal("Failed to build server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Serve(ctx); err != nil {
			log.WithError(err).Fatal("Server exited with error")
		}
	}()

	go func() {
		for status := range srv.Status() {
			log.WithField("status", status).Debug("Connection status")
		}
	}()

	if diagnosticsAddr != "" {
		go func() {
			if err := srv.ServeDiagnosticsHTTP(ctx, diagnosticsAddr); err != nil {
				log.WithError(err).Warn("diagnostics HTTP server exited with error")
			}
		}()
	}

	waitSigint(srv)
	log.Info("Shutting down..")

	cancel()
	_ = srv.Close()
}
