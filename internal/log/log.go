package log

import (
	"github.com/csr-ugra/flight-price-parser/internal/util"
	"github.com/google/uuid"
	"github.com/nullseed/logruseq"
	"github.com/sirupsen/logrus"
	"io"
	"os"
)

type Logger = *logrus.Entry

// New builds the process logger. Every entry carries a TraceId unique to the process.
func New(config *util.Config) Logger {
	return newLogger(config, os.Stdout)
}

func newLogger(config *util.Config, out io.Writer) Logger {
	logger := &logrus.Logger{
		Out:   out,
		Hooks: make(logrus.LevelHooks),
		Level: logrus.DebugLevel,
	}

	if config.Environment.Value == "production" {
		logger.Formatter = &logrus.JSONFormatter{}
	} else {
		logger.Formatter = &logrus.TextFormatter{
			ForceColors:      true,
			FullTimestamp:    false,
			QuoteEmptyFields: true,
		}
	}

	level, err := logrus.ParseLevel(config.LogLevel.Value)
	if err != nil {
		logger.WithField("LogLevel", config.LogLevel.Value).Warn("unknown log level {LogLevel}, using debug")
	} else {
		logger.SetLevel(level)
	}

	if config.SeqUrl.Value != "" {
		seqHook := logruseq.NewSeqHook(config.SeqUrl.Value, logruseq.OptionAPIKey(config.SeqToken.Value))
		logger.AddHook(seqHook)
	} else {
		logger.Warn("logger running without seq hook")
	}

	return logger.WithField("TraceId", uuid.New().String())
}
