// Package logging provides structured logging for rulemap on top of zap.
// Logs go to stderr so stdout stays reserved for generated artifacts.
package logging
