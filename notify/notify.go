// Package notify is the operator-facing notification surface: success, warning,
// error and info messages. Delivery is fire-and-forget.
package notify

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Notifier interface {
	Success(msg string)
	Warning(msg string)
	Error(msg string)
	Info(msg string)
}

// Message is one recorded notification.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Func adapts a single function to Notifier.
type Func func(level Level, msg string)

func (f Func) Success(msg string) { f(LevelSuccess, msg) }
func (f Func) Warning(msg string) { f(LevelWarning, msg) }
func (f Func) Error(msg string)   { f(LevelError, msg) }
func (f Func) Info(msg string)    { f(LevelInfo, msg) }

// Log writes notifications to the global logger.
var Log Notifier = Func(func(level Level, msg string) {
	switch level {
	case LevelError:
		log.Error().Str("notify", string(level)).Msg(msg)
	case LevelWarning:
		log.Warn().Str("notify", string(level)).Msg(msg)
	default:
		log.Info().Str("notify", string(level)).Msg(msg)
	}
})

// Discard drops every notification.
var Discard Notifier = Func(func(Level, string) {})

// Recorder collects notifications so they can be returned to an HTTP client.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Success(msg string) { r.add(LevelSuccess, msg) }
func (r *Recorder) Warning(msg string) { r.add(LevelWarning, msg) }
func (r *Recorder) Error(msg string)   { r.add(LevelError, msg) }
func (r *Recorder) Info(msg string)    { r.add(LevelInfo, msg) }

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, Message{Level: level, Text: msg})
	r.mu.Unlock()
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Drain returns and clears the recorded messages.
func (r *Recorder) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

// Safe never lets a misbehaving notifier take the caller down: a nil notifier or a
// panic inside it falls back to the log notifier.
func Safe(n Notifier) Notifier {
	return Func(func(level Level, msg string) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Warn().Interface("panic", rec).Msg("notify: notifier panicked")
				dispatch(Log, level, msg)
			}
		}()
		if n == nil {
			dispatch(Log, level, msg)
			return
		}
		dispatch(n, level, msg)
	})
}

// Multi fans a notification out to several notifiers.
func Multi(ns ...Notifier) Notifier {
	return Func(func(level Level, msg string) {
		for _, n := range ns {
			dispatch(n, level, msg)
		}
	})
}

func dispatch(n Notifier, level Level, msg string) {
	switch level {
	case LevelSuccess:
		n.Success(msg)
	case LevelWarning:
		n.Warning(msg)
	case LevelError:
		n.Error(msg)
	default:
		n.Info(msg)
	}
}
