package monitoring

import "log"

// Logf is the diagnostic logger shared by the shot pipeline packages. It
// defaults to log.Printf; SetLogger redirects or mutes it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// WithPrefix returns a logger that prepends prefix to every line and then
// forwards to the current package logger. The package logger is looked up
// on each call so SetLogger still takes effect.
func WithPrefix(prefix string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
