package whatsapp

import (
	"fmt"

	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/carpenike/repcoach/internal/logger"
)

// waLogger routes whatsmeow's printf-style logging into the service logger.
type waLogger struct {
	log *logger.Logger
}

func newWALogger(log *logger.Logger, module string) waLog.Logger {
	return waLogger{log: log.With("module", module)}
}

func (w waLogger) Debugf(msg string, args ...interface{}) { w.log.Debug(fmt.Sprintf(msg, args...)) }
func (w waLogger) Infof(msg string, args ...interface{})  { w.log.Info(fmt.Sprintf(msg, args...)) }
func (w waLogger) Warnf(msg string, args ...interface{})  { w.log.Warn(fmt.Sprintf(msg, args...)) }
func (w waLogger) Errorf(msg string, args ...interface{}) { w.log.Error(fmt.Sprintf(msg, args...)) }

func (w waLogger) Sub(module string) waLog.Logger {
	return waLogger{log: w.log.With("submodule", module)}
}
