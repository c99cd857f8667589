package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// global accessible logger
var (
	LogV2 *Logger
)

// This init function is only for testing cases, where the entry point is not
// main function. Unit test will fail with nil pointer dereference if we don't
// init here.
func init() {
	initLogger()
}

type Logger struct {
	*logrus.Logger
}

func (l *Logger) Infof(params ...interface{}) {
	l.Info(joinParams(params))
}

func (l *Logger) Debugf(params ...interface{}) {
	l.Debug(joinParams(params))
}

func (l *Logger) Errorf(params ...interface{}) {
	l.Error(joinParams(params))
}

func joinParams(params []interface{}) string {
	strs := make([]string, len(params))
	for i, param := range params {
		strs[i] = fmt.Sprint(param)
	}
	return strings.Join(strs, ", ")
}

func initLogger() {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	if parsed, err := logrus.ParseLevel(os.Getenv("FRIENDSYNC_LOG_LEVEL")); err == nil {
		level = parsed
	}
	l.SetLevel(level)

	LogV2 = &Logger{l}
}
