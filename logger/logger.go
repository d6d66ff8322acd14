package logger

import (
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"quoteflow/common"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

var once sync.Once

var log zerolog.Logger

const (
	logFilePrefix   = "quoteflow-"
	logFileSuffix   = ".log"
	maxLogFileCount = 7
)

// GetLogLevel reads QF_LOG_LEVEL, which may be a level name ("debug") or
// zerolog's numeric level. Defaults to info.
func GetLogLevel() zerolog.Level {
	raw := strings.TrimSpace(os.Getenv("QF_LOG_LEVEL"))
	if raw == "" {
		return zerolog.InfoLevel
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return zerolog.Level(n)
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// Get returns the process logger. Output goes to stderr and, when the state
// home is writable, to a daily rotating file.
func Get() zerolog.Logger {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
		var output io.Writer = consoleWriter

		stateHome, err := common.GetStateHome()
		if err == nil {
			fileWriter, err := common.NewRotatingFileWriter(stateHome, logFilePrefix, logFileSuffix, maxLogFileCount)
			if err == nil {
				output = zerolog.MultiLevelWriter(consoleWriter, fileWriter)
			}
		}

		var gitRevision, goVersion string
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			goVersion = buildInfo.GoVersion
			for _, v := range buildInfo.Settings {
				if v.Key == "vcs.revision" {
					gitRevision = v.Value
					break
				}
			}
		}

		log = zerolog.New(output).
			Level(GetLogLevel()).
			With().
			Timestamp().
			Str("git_revision", gitRevision).
			Str("go_version", goVersion).
			Logger()
	})

	return log
}

// Install makes Get's logger the global zerolog logger used via
// github.com/rs/zerolog/log throughout the module.
func Install() zerolog.Logger {
	l := Get()
	zlog.Logger = l
	zerolog.SetGlobalLevel(l.GetLevel())
	return l
}
