// Package observers provides observers for monitoring state machine events
package observers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/anggasct/qhsm"
)

// LogLevel represents the logging level
type LogLevel int

const (
	// LogError logs only errors
	LogError LogLevel = iota
	// LogWarning logs errors and warnings
	LogWarning
	// LogInfo logs errors, warnings, and info
	LogInfo
	// LogDebug logs errors, warnings, info, and debug
	LogDebug
)

// Level returns the slog level matching l
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogError:
		return slog.LevelError
	case LogWarning:
		return slog.LevelWarn
	case LogDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// LoggingObserver logs machine events through a structured logger
type LoggingObserver struct {
	qhsm.BaseObserver

	level  LogLevel
	prefix string
	mutex  sync.RWMutex
	logger *slog.Logger
}

var _ qhsm.ExtendedObserver = (*LoggingObserver)(nil)

// NewLoggingObserver creates a new logging observer writing to slog.Default()
func NewLoggingObserver(level LogLevel, prefix string) *LoggingObserver {
	return &LoggingObserver{
		level:  level,
		prefix: prefix,
		logger: slog.Default(),
	}
}

// SetLogger sets the logger records are written to
func (o *LoggingObserver) SetLogger(logger *slog.Logger) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.logger = logger
}

// SetLevel changes the most verbose level that is logged
func (o *LoggingObserver) SetLevel(level LogLevel) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.level = level
}

func (o *LoggingObserver) log(level LogLevel, msg string, info qhsm.MachineInfo, args ...any) {
	o.mutex.RLock()
	logger, threshold, prefix := o.logger, o.level, o.prefix
	o.mutex.RUnlock()

	if level > threshold || logger == nil {
		return
	}
	attrs := make([]any, 0, len(args)+8)
	if prefix != "" {
		attrs = append(attrs, "component", prefix)
	}
	attrs = append(attrs, "machine", info.ID, "type", info.Type)
	attrs = append(attrs, args...)
	logger.Log(context.Background(), level.Level(), msg, attrs...)
}

// OnStateEnter logs state entry
func (o *LoggingObserver) OnStateEnter(state string, info qhsm.MachineInfo) {
	o.log(LogDebug, "entering state", info, "state", state)
}

// OnStateExit logs state exit
func (o *LoggingObserver) OnStateExit(state string, info qhsm.MachineInfo) {
	o.log(LogDebug, "exiting state", info, "state", state)
}

// OnStateInit logs a handled initial transition
func (o *LoggingObserver) OnStateInit(state string, info qhsm.MachineInfo) {
	o.log(LogDebug, "initial transition", info, "state", state)
}

// OnTransition logs transitions
func (o *LoggingObserver) OnTransition(from string, to string, event qhsm.Event, info qhsm.MachineInfo) {
	o.log(LogInfo, "transition", info, "from", from, "to", to, "signal", info.SignalName(event.Signal()))
}

// OnEventDispatched logs every delivery of an event to a state
func (o *LoggingObserver) OnEventDispatched(state string, event qhsm.Event, handled bool, info qhsm.MachineInfo) {
	o.log(LogDebug, "event dispatched", info, "state", state, "signal", info.SignalName(event.Signal()), "handled", handled)
}

// OnEventDropped logs events nobody handled
func (o *LoggingObserver) OnEventDropped(event qhsm.Event, info qhsm.MachineInfo) {
	o.log(LogWarning, "event dropped", info, "state", info.State, "signal", info.SignalName(event.Signal()))
}

// OnError logs errors
func (o *LoggingObserver) OnError(err error, info qhsm.MachineInfo) {
	o.log(LogError, "machine error", info, "state", info.State, "error", err)
}

// OnMachineStarted logs machine start
func (o *LoggingObserver) OnMachineStarted(info qhsm.MachineInfo) {
	o.log(LogInfo, "machine started", info, "state", info.State)
}

// OnMachineStopped logs machine stop
func (o *LoggingObserver) OnMachineStopped(info qhsm.MachineInfo) {
	o.log(LogInfo, "machine stopped", info, "state", info.State)
}

// OnMachineHalted logs a halt
func (o *LoggingObserver) OnMachineHalted(err error, info qhsm.MachineInfo) {
	o.log(LogError, "machine halted", info, "state", info.State, "error", err)
}
