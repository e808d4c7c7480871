// Package logging provides structured logging for go2n.
//
// This package wraps a package-level zap logger. The device client logs every
// request at debug level with host, method, endpoint, HTTP status and
// duration, and attaches a truncated response body when a response is
// rejected.
//
// # Configuration
//
// Logging is silent by default so the library never writes to a terminal it
// does not own. The CLI initializes it from --log-level or GO2N_LOG_LEVEL:
//
//	if err := logging.Initialize(logLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Output goes to stderr in console format so that command output on stdout
// stays machine readable.
package logging
