// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/quicecho/internal/quicecho"
)

// tomlConfig describes the TOML configuration file.
type tomlConfig struct {
	Listen      listenConf
	Logging     logConf
	Diagnostics diagnosticsConf
}

// diagnosticsConf describes the optional Diagnostics configuration block: a
// plain HTTP server exposing GET /status.
type diagnosticsConf struct {
	Address string
}

// listenConf describes the Listen configuration block.
type listenConf struct {
	Address  string
	CertFile string `toml:"cert-file"`
	KeyFile  string `toml:"key-file"`

	InitialMaxStreamDataBidiLocal  uint64 `toml:"initial-max-stream-data-bidi-local"`
	InitialMaxStreamDataBidiRemote uint64 `toml:"initial-max-stream-data-bidi-remote"`
	InitialMaxStreamDataUni        uint64 `toml:"initial-max-stream-data-uni"`
	InitialMaxData                 uint64 `toml:"initial-max-data"`
	InitialMaxStreamsBidi          int64  `toml:"initial-max-streams-bidi"`
	InitialMaxStreamsUni           int64  `toml:"initial-max-streams-uni"`
	MaxIdleTimeoutSeconds          uint   `toml:"max-idle-timeout-seconds"`
	ActiveConnectionIDLimit        uint64 `toml:"active-connection-id-limit"`
	MaxDatagramFrameSize           uint64 `toml:"max-datagram-frame-size"`

	QPACKMaxTableCapacity   uint64 `toml:"qpack-max-table-capacity"`
	QPACKBlockedStreams     uint64 `toml:"qpack-blocked-streams"`
	EnableExtendedConnect   bool   `toml:"enable-extended-connect"`
	EnableH3Datagram        bool   `toml:"enable-h3-datagram"`
	WebTransportMaxSessions uint64 `toml:"webtransport-max-sessions"`
}

// logConf describes the Logging configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// parseConfig reads filename, applies the logging configuration
// immediately (so parse errors below are themselves logged at the
// requested level/format), and returns the quicecho.Config, credentials
// needed to build a Server, and the diagnostics HTTP listen address (empty
// if the Diagnostics block was omitted).
func parseConfig(filename string) (quicecho.Config, *quicecho.Credentials, string, error) {
	var conf tomlConfig
	if _, err := toml.DecodeFile(filename, &conf); err != nil {
		return quicecho.Config{}, nil, "", err
	}

	if conf.Logging.Level != "" {
		if lvl, err := log.ParseLevel(conf.Logging.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Logging.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}
	log.SetReportCaller(conf.Logging.ReportCaller)

	switch conf.Logging.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		log.Warn("Unknown logging format")
	}

	if conf.Listen.CertFile == "" || conf.Listen.KeyFile == "" {
		return quicecho.Config{}, nil, "", fmt.Errorf("listen.cert-file and listen.key-file are required")
	}

	creds, err := quicecho.LoadCredentials(conf.Listen.CertFile, conf.Listen.KeyFile)
	if err != nil {
		return quicecho.Config{}, nil, "", fmt.Errorf("loading credentials: %w", err)
	}

	cfg := quicecho.DefaultConfig()
	if conf.Listen.Address != "" {
		cfg.ListenAddr = conf.Listen.Address
	}
	cfg.CertFile = conf.Listen.CertFile
	cfg.KeyFile = conf.Listen.KeyFile

	applyIfNonZero(&cfg.InitialMaxStreamDataBidiLocal, conf.Listen.InitialMaxStreamDataBidiLocal)
	applyIfNonZero(&cfg.InitialMaxStreamDataBidiRemote, conf.Listen.InitialMaxStreamDataBidiRemote)
	applyIfNonZero(&cfg.InitialMaxStreamDataUni, conf.Listen.InitialMaxStreamDataUni)
	applyIfNonZero(&cfg.InitialMaxData, conf.Listen.InitialMaxData)
	applyIfNonZero(&cfg.InitialMaxStreamsBidi, conf.Listen.InitialMaxStreamsBidi)
	applyIfNonZero(&cfg.InitialMaxStreamsUni, conf.Listen.InitialMaxStreamsUni)
	applyIfNonZero(&cfg.ActiveConnectionIDLimit, conf.Listen.ActiveConnectionIDLimit)
	applyIfNonZero(&cfg.MaxDatagramFrameSize, conf.Listen.MaxDatagramFrameSize)
	applyIfNonZero(&cfg.QPACKMaxTableCapacity, conf.Listen.QPACKMaxTableCapacity)
	applyIfNonZero(&cfg.QPACKBlockedStreams, conf.Listen.QPACKBlockedStreams)
	applyIfNonZero(&cfg.WebTransportMaxSessions, conf.Listen.WebTransportMaxSessions)

	if conf.Listen.MaxIdleTimeoutSeconds > 0 {
		cfg.MaxIdleTimeout = time.Duration(conf.Listen.MaxIdleTimeoutSeconds) * time.Second
	}
	if conf.Listen.EnableExtendedConnect {
		cfg.EnableExtendedConnect = conf.Listen.EnableExtendedConnect
	}
	if conf.Listen.EnableH3Datagram {
		cfg.EnableH3Datagram = conf.Listen.EnableH3Datagram
	}

	return cfg, creds, conf.Diagnostics.Address, nil
}

// applyIfNonZero is a small generic helper for "only override the default
// if the TOML file actually set this field", matching the zero-value-means
// "unset" convention TOML decoding already gives us.
func applyIfNonZero[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
