// Package observability builds the logger and the Prometheus metrics of a
// calibration run.
package observability

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger returns a development logger when debug is set and a production
// logger otherwise.
func NewLogger(debug bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("can't initialize zap logger: %w", err)
	}
	return logger, nil
}
