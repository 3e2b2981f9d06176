package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for data-access logging.

// CallID adds a call ID field.
func CallID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("call_id", id)
	}
}

// Op adds an operation name field.
func Op(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("op", name)
	}
}

// Key adds a cache key field.
func Key(key string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("key", key)
	}
}

// Attempt adds an attempt number field.
func Attempt(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("attempt", n)
	}
}

// Delay adds a backoff delay field in milliseconds.
func Delay(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("delay_ms", d.Milliseconds())
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Cached adds a cached field.
func Cached(cached bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("cached", cached)
	}
}

// Policy adds an eviction policy field.
func Policy(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("policy", name)
	}
}

// Mutating adds a mutating field.
func Mutating(mutating bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("mutating", mutating)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// Int adds an int field with custom key.
func Int(key string, value int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, value)
	}
}
