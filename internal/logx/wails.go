package logx

import (
	logging "github.com/ipfs/go-log/v2"
)

// WailsLogger routes the webview runtime's own log lines into the "wails"
// subsystem. It satisfies github.com/wailsapp/wails/v2/pkg/logger.Logger.
type WailsLogger struct {
	log *logging.ZapEventLogger
}

func NewWailsLogger() *WailsLogger {
	return &WailsLogger{log: logging.Logger("wails")}
}

func (l *WailsLogger) Print(message string)   { l.log.Info(message) }
func (l *WailsLogger) Trace(message string)   { l.log.Debug(message) }
func (l *WailsLogger) Debug(message string)   { l.log.Debug(message) }
func (l *WailsLogger) Info(message string)    { l.log.Info(message) }
func (l *WailsLogger) Warning(message string) { l.log.Warn(message) }
func (l *WailsLogger) Error(message string)   { l.log.Error(message) }

// Fatal is logged as an error; the host process must stay up so the
// operator can read the logs.
func (l *WailsLogger) Fatal(message string) { l.log.Error(message) }
