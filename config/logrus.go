package config

import (
	"context"
	"os"
	"strings"

	"github.com/mmdatafocus/mdm_backend/appctx"
	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(parseLogLevel(os.Getenv("LOG_LEVEL")))
	logg.SetOutput(os.Stdout)
}

// parseLogLevel accepts any logrus level name; blank or unknown values give
// the error level.
func parseLogLevel(v string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(v))
	if err != nil {
		return logrus.ErrorLevel
	}
	return lvl
}

// ScopeFields returns the school and correlation id of ctx as log fields.
func ScopeFields(ctx context.Context) logrus.Fields {
	s := appctx.ScopeFrom(ctx)
	f := logrus.Fields{}
	if s.SchoolId != "" {
		f["school_id"] = s.SchoolId
	}
	if s.CorrelationId != "" {
		f["correlation_id"] = s.CorrelationId
	}
	return f
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
