package logging

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	dateFormat = "02/Jan/2006:15:04:05 -0700"

	// format:
	// [date] id "target" category state duration_ms response_size "error"
	requestLogFormat = `[%s] %s "%s" %s %s %d %d "%s"` + "\n"
)

type requestLogFormatter struct {
	format string
}

// RequestEntry describes a concluded request.
type RequestEntry struct {

	// ID of the request.
	ID string

	// Target of the request.
	Target string

	// Category of the request, e.g. imagery.
	Category string

	// Final state of the request, e.g. received or cancelled.
	State string

	// Size of the received data in bytes, when known.
	ResponseSize int64

	// Time between starting and concluding the request.
	Duration time.Duration

	// Time when the request was started.
	StartTime time.Time

	// Error, when the request did not succeed.
	Err error
}

var requestLog *logrus.Logger

func (f *requestLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	keys := []string{
		"timestamp", "id", "target", "category",
		"state", "duration", "response-size", "error",
	}

	values := make([]interface{}, len(keys))
	for i, key := range keys {
		values[i] = e.Data[key]
	}

	return []byte(fmt.Sprintf(f.format, values...)), nil
}

// LogRequest logs a concluded request. It does nothing when the request log
// was not initialized or is disabled.
func LogRequest(entry *RequestEntry) {
	if requestLog == nil || entry == nil {
		return
	}

	errString := ""
	if entry.Err != nil {
		errString = entry.Err.Error()
	}

	requestLog.WithFields(logrus.Fields{
		"timestamp":     entry.StartTime.Format(dateFormat),
		"id":            entry.ID,
		"target":        entry.Target,
		"category":      entry.Category,
		"state":         entry.State,
		"duration":      int64(entry.Duration / time.Millisecond),
		"response-size": entry.ResponseSize,
		"error":         errString,
	}).Infoln()
}
