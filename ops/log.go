// Package ops provides structured operational logging for run components
// (Worker, Indexer, Publisher): a canonical Log shape, a Publisher
// abstraction over where logs go, and adapters for routing logrus (or a
// raw connector's stdout) through that abstraction.
package ops

import (
	"encoding/json"
	"fmt"
	"time"
)

// LogLevel orders log severity; higher values are more severe.
type LogLevel int

const (
	LogLevelUndefined LogLevel = iota
	LogLevelTrace
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// RunRef identifies the run and pipeline a Log was produced by.
type RunRef struct {
	Pipeline string `json:"pipeline"`
	RunID    string `json:"runId"`
}

// Log is the canonical shape of an operational log event.
type Log struct {
	Timestamp time.Time       `json:"ts"`
	Level     LogLevel        `json:"level"`
	Message   string          `json:"message"`
	Fields    json.RawMessage `json:"fields,omitempty"`
	Run       RunRef          `json:"run,omitempty"`
}

// Labeling carries the context (run identity, configured log level) a
// Publisher attaches to every Log it emits.
type Labeling struct {
	Run      RunRef
	LogLevel LogLevel
}

// Publisher routes Log events somewhere: stderr, a collection, a test
// buffer.
type Publisher interface {
	PublishLog(Log)
	Labels() Labeling
}

// PublishLog constructs and publishes a Log via publisher, provided its
// configured level permits it. Fields must be pairs of a string key
// followed by a JSON-encodable value; PublishLog panics on malformed
// fields, since that is a programmer error, not a runtime one.
func PublishLog(publisher Publisher, level LogLevel, message string, fields ...interface{}) {
	if publisher.Labels().LogLevel > level {
		return
	}
	if len(fields)%2 != 0 {
		panic(fmt.Sprintf("ops: fields must be of even length: %#v", fields))
	}

	m := make(map[string]interface{}, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			panic(fmt.Sprintf("ops: field key must be a string, got %#v", fields[i]))
		}
		value := fields[i+1]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		m[key] = value
	}

	raw, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}

	publisher.PublishLog(Log{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Fields:    raw,
		Run:       publisher.Labels().Run,
	})
}
