package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// eventAdapter adapts zerolog events to the LogEvent interface.
// A nil event (level disabled) is safe to use; zerolog treats it as a no-op.
type eventAdapter struct {
	event *zerolog.Event
}

func (a *eventAdapter) Msg(msg string) {
	a.event.Msg(msg)
}

func (a *eventAdapter) Msgf(format string, args ...any) {
	a.event.Msgf(format, args...)
}

func (a *eventAdapter) Err(err error) LogEvent {
	a.event = a.event.Err(err)
	return a
}

func (a *eventAdapter) Str(key, value string) LogEvent {
	a.event = a.event.Str(key, value)
	return a
}

func (a *eventAdapter) Strs(key string, values []string) LogEvent {
	a.event = a.event.Strs(key, values)
	return a
}

func (a *eventAdapter) Int(key string, value int) LogEvent {
	a.event = a.event.Int(key, value)
	return a
}

func (a *eventAdapter) Uint64(key string, value uint64) LogEvent {
	a.event = a.event.Uint64(key, value)
	return a
}

func (a *eventAdapter) Dur(key string, d time.Duration) LogEvent {
	a.event = a.event.Dur(key, d)
	return a
}
