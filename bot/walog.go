package bot

import (
	waLog "go.mau.fi/whatsmeow/util/log"

	"radiovespa/utils"
)

// waLogger routes whatsmeow's internal logs into the application logger.
type waLogger struct {
	log *utils.Logger
}

func newWALogger(l *utils.Logger) waLog.Logger {
	return &waLogger{log: l}
}

func (w *waLogger) Errorf(msg string, args ...interface{}) { w.log.Error(msg, args...) }
func (w *waLogger) Warnf(msg string, args ...interface{})  { w.log.Warn(msg, args...) }
func (w *waLogger) Infof(msg string, args ...interface{})  { w.log.Info(msg, args...) }
func (w *waLogger) Debugf(msg string, args ...interface{}) { w.log.Debug(msg, args...) }

func (w *waLogger) Sub(module string) waLog.Logger {
	return &waLogger{log: w.log.Named(module)}
}
