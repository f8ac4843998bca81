// Package logger wraps zap for the bootstrap binaries.
//
// It keeps a global sugared logger with a console encoder, carries named
// loggers through context (ToContext/FromContext/WithName/WithKV), and can
// tee output into a rotated log file so a failed install leaves a trace.
package logger
