package ops

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/sirupsen/logrus"
)

// maxLogSize bounds a single unterminated log line before it's discarded,
// protecting the adapter from unbounded buffering on a misbehaving
// connector.
const maxLogSize = 1 << 20 // 1MB

// NewLogWriteAdapter returns an io.Writer accepting newline-delimited,
// JSON-encoded Logs (e.g. a Remote connector's structured stdout),
// dispatching each to publisher with its Run populated from publisher's
// Labeling.
func NewLogWriteAdapter(publisher Publisher) io.Writer {
	return &writeAdapter{publisher: publisher, run: publisher.Labels().Run}
}

type writeAdapter struct {
	publisher Publisher
	run       RunRef
	rem       []byte
}

func (w *writeAdapter) Write(p []byte) (int, error) {
	n := len(p)

	for {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			break
		}
		line := p[:i]
		if len(w.rem) > 0 {
			line = append(w.rem, line...)
		}

		var log Log
		if err := json.Unmarshal(line, &log); err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"line":  string(line),
			}).Error("failed to unmarshal operations log")
		} else {
			log.Run = w.run
			w.publisher.PublishLog(log)
		}

		p = p[i+1:]
		w.rem = w.rem[:0]
	}

	if len(w.rem)+len(p) > maxLogSize {
		logrus.WithField("length", len(w.rem)+len(p)).Error("operations log line is too long (discarding)")
		w.rem = w.rem[:0]
	} else if len(p) > 0 {
		w.rem = append(w.rem, p...)
	}

	return n, nil
}
