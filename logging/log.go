package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type prefixFormatter struct {
	prefix    string
	formatter logrus.Formatter
}

// Options for logging initialization.
type Options struct {

	// Prefix for application log entries. Primarily used to be able to
	// select between request log and application log entries.
	ApplicationLogPrefix string

	// Output for the application log entries, when nil, os.Stderr is
	// used.
	ApplicationLogOutput io.Writer

	// Level of the application log. Defaults to logrus.InfoLevel.
	ApplicationLogLevel logrus.Level

	// When set, the application log is written in JSON format.
	ApplicationLogJSONEnabled bool

	// Output for the request log entries, when nil, os.Stderr is used.
	RequestLogOutput io.Writer

	// When set, no request log is printed.
	RequestLogDisabled bool

	// When set, the request log is written in JSON format.
	RequestLogJSONEnabled bool
}

func (f *prefixFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b, err := f.formatter.Format(e)
	if err != nil {
		return nil, err
	}

	return append([]byte(f.prefix), b...), nil
}

func initApplicationLog(o Options) {
	var formatter logrus.Formatter = &logrus.TextFormatter{}
	if o.ApplicationLogJSONEnabled {
		formatter = &logrus.JSONFormatter{}
	}

	if o.ApplicationLogPrefix != "" {
		formatter = &prefixFormatter{o.ApplicationLogPrefix, formatter}
	}

	logrus.SetFormatter(formatter)

	if o.ApplicationLogOutput != nil {
		logrus.SetOutput(o.ApplicationLogOutput)
	}

	if o.ApplicationLogLevel != 0 {
		logrus.SetLevel(o.ApplicationLogLevel)
	}
}

func initRequestLog(output io.Writer, jsonEnabled bool) {
	l := logrus.New()
	if jsonEnabled {
		l.Formatter = &logrus.JSONFormatter{TimestampFormat: dateFormat, DisableTimestamp: true}
	} else {
		l.Formatter = &requestLogFormatter{requestLogFormat}
	}

	l.Out = output
	l.Level = logrus.InfoLevel
	requestLog = l
}

// Init initializes the application log and the request log.
func Init(o Options) {
	initApplicationLog(o)

	if o.RequestLogDisabled {
		requestLog = nil
		return
	}

	if o.RequestLogOutput == nil {
		o.RequestLogOutput = os.Stderr
	}

	initRequestLog(o.RequestLogOutput, o.RequestLogJSONEnabled)
}
