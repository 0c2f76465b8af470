package adsession

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// logOperation runs fn, logging start, duration, and outcome with the given
// key/value pairs.
func logOperation(logger hclog.Logger, operation string, args []any, fn func() error) error {
	start := time.Now()

	logger.Debug("starting "+operation, args...)

	err := fn()
	args = append(args, "duration_ms", time.Since(start).Milliseconds())

	if err != nil {
		args = append(args, "error", err.Error())
		logger.Error(operation+" failed", args...)
		return err
	}

	logger.Debug(operation+" completed", args...)
	return nil
}
