package audit

import (
	"context"
	"encoding/json"
	"log"
)

// Log writes every event as a JSON line through a standard logger.
type Log struct {
	logger *log.Logger
}

// NewLog creates a log sink; a nil logger uses the standard logger.
func NewLog(logger *log.Logger) *Log {
	if logger == nil {
		logger = log.Default()
	}
	return &Log{logger: logger}
}

// Record logs event.
func (l *Log) Record(_ context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	l.logger.Printf("audit: %s", data)
	return nil
}
