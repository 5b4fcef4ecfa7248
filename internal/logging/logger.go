package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/mvtan/jigsaw/internal/config"
)

// InitLogger sets the log level and format based on the provided configuration
func InitLogger(cfg *config.Config) {
	setLogLevel(cfg.LogLevel)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

// InitFromEnv initializes logging from environment variables
func InitFromEnv() {
	setLogLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
}

// BlockLevel maps the run verbosity onto the level at which per-block
// manifest lines are logged. Verbosity 1 is the chattiest: every manifest
// line is visible at the default level.
func BlockLevel(verbose int) log.Level {
	if verbose == 1 {
		return log.InfoLevel
	}
	return log.DebugLevel
}

// setLogLevel sets the log level based on string input
func setLogLevel(logLevel string) {
	switch logLevel {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.ErrorLevel)
	}
}

func init() {
	InitFromEnv()
}
