// Package logx provides the shared structured logger used throughout this
// module, in the shape of gaspardpetit/nfrx's internal/logx package: a
// package-level zerolog.Logger plus a Configure function driven by a level
// name instead of individual log.Printf calls gated by a bool (the
// teacher's netLog field in conn.go/muxer.go).
package logx

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Log is the shared logger. Components log through it with structured
// fields (such as the connection id under "conn") rather than formatted
// strings.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func init() {
	Configure(os.Getenv("RSOCKET_LOG_LEVEL"))
}

// Configure sets the global log level from a name: trace, debug, info,
// warn, error, none/off disables logging entirely. An empty or unknown
// name sets the level to info.
func Configure(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "all":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "none", "off", "disabled":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	case "", "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
