package poollog

import (
	"go.uber.org/zap"

	"writerpool/pkg/writerpool"
)

// Listener adapts a *zap.Logger to writerpool.Listener, logging every pool
// event at a level appropriate to its severity (errors loud, routine
// acquire/release traffic at debug) — grounded on the pack's convention of
// a single structured logger fed by every subsystem, rather than one
// println per call site.
type Listener struct {
	log *zap.Logger
}

func NewListener(log *zap.Logger) *Listener {
	return &Listener{log: log.Named("writerpool")}
}

func (l *Listener) Notify(e writerpool.Event) {
	fields := []zap.Field{
		zap.Int64("owner", e.Owner),
		zap.String("table", e.Table),
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}

	switch e.Kind {
	case writerpool.EventCreateError, writerpool.EventUnexpectedClose:
		l.log.Error(e.Kind.String(), fields...)
	case writerpool.EventLockBusy, writerpool.EventNotLocked, writerpool.EventNotLockOwner:
		l.log.Warn(e.Kind.String(), fields...)
	default:
		l.log.Debug(e.Kind.String(), fields...)
	}
}
