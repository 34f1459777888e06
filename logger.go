package pandemicsim

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewRunLogger builds the console logger that drives all run-lifecycle
// logging: realization start/end, day-0 setup, early-stop triggers, and
// output-writer open/close. level is the -l CLI flag value ("debug",
// "info", "warn", "error"); unrecognized values fall back to info.
func NewRunLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(writer).With().Timestamp().Logger()
}

// LogRealizationStart logs a realization's startup: its index and seed.
// The driver calls this once per realization, never inside the per-day
// loop.
func LogRealizationStart(log zerolog.Logger, index int, seed int64) {
	log.Info().Int("realization", index).Int64("seed", seed).Msg("realization started")
}

// LogRealizationEnd logs a realization's completion: its index, the last
// simulated day, and whether it stopped early.
func LogRealizationEnd(log zerolog.Logger, index, lastDay int, stoppedEarly bool) {
	log.Info().
		Int("realization", index).
		Int("last_day", lastDay).
		Bool("stopped_early", stoppedEarly).
		Msg("realization finished")
}

// LogOutputOpened logs which output backend a batch is writing to.
func LogOutputOpened(log zerolog.Logger, kind, path string) {
	log.Info().Str("backend", kind).Str("path", path).Msg("output writer opened")
}

// LogOutputClosed logs an output backend's closure, e.g. on run completion
// or a fatal error during flush.
func LogOutputClosed(log zerolog.Logger, kind string, err error) {
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Str("backend", kind).Msg("output writer closed")
}

// LogConfigLoaded logs the resolved configuration path and realization
// count once at startup.
func LogConfigLoaded(log zerolog.Logger, path string, realizations int) {
	log.Info().Str("config", path).Int("realizations", realizations).Msg("configuration loaded")
}
