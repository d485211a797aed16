package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Field helpers for names used throughout the middleware

func Component(name string) Field {
	return String("component", name)
}

func ClientID(id string) Field {
	return String("client_id", id)
}

func SessionID(id string) Field {
	return String("session_id", id)
}

func JTI(id string) Field {
	return String("jti", id)
}

func Subject(s string) Field {
	return String("subject", s)
}

func RequestID(id string) Field {
	return String("request_id", id)
}

func Method(m string) Field {
	return String("method", m)
}

func Path(p string) Field {
	return String("path", p)
}

func Status(code int) Field {
	return Int("status", code)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

func Reason(r string) Field {
	return String("reason", r)
}
