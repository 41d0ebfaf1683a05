// Package status reports per-file progress of a batch run.
package status

import (
	log "github.com/sirupsen/logrus"
)

// Reporter receives the lifecycle events of a batch run. Every
// BeginEncryption is followed by exactly one EndEncryption or FileError
// for the same input, but the calls may come from different goroutines.
type Reporter interface {
	BeginEncryption(input string)
	EndEncryption(input, output string, size int64)
	FileError(input string, err error)
}

// Logger reports through logrus at the standard levels: debug for begin,
// info for completion, error for failures.
type Logger struct{}

func (Logger) BeginEncryption(input string) {
	log.WithField("file", input).Debug("encrypting")
}

func (Logger) EndEncryption(input, output string, size int64) {
	log.WithFields(log.Fields{
		"file":   input,
		"output": output,
		"bytes":  size,
	}).Info("encrypted")
}

func (Logger) FileError(input string, err error) {
	log.WithField("file", input).WithError(err).Error("encryption failed")
}

// Nop discards all events.
type Nop struct{}

func (Nop) BeginEncryption(string)              {}
func (Nop) EndEncryption(string, string, int64) {}
func (Nop) FileError(string, error)             {}
