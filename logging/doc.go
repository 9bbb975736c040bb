/*
Package logging implements application log instrumentation and the
request log.

# Application Log

The application log uses the logrus package:

https://github.com/sirupsen/logrus

To send messages to the application log, import this package and use its
methods. Example:

	import log "github.com/sirupsen/logrus"

	func doSomething() {
	    log.Errorf("nothing to do")
	}

Components that accept a Logger, like the scheduler, default to a
DefaultLog writing to the standard logrus logger.

During startup initialization, it is possible to redirect the log output
from the default /dev/stderr to another file, to set the level, to switch
to JSON output, and to set a common prefix for each log entry. Setting the
prefix may be a good idea when the request log is enabled and its output is
the same as the one of the application log, to make it easier to split the
output for diagnostics.

# Request Log

The request log prints one line for every concluded request, with its
target, category, final state, duration and response size. To output
entries, use the LogRequest function.

During initialization, it is possible to redirect the request log output
from the default /dev/stderr to another file, or completely disable it.
*/
package logging
