// Package diag routes container diagnostics to an explicit zap logger.
package diag

import (
	"go.uber.org/zap"

	"github.com/wippyai/rowarena/errors"
)

// Report logs err and returns it unchanged.
// Allocation failures and structural overflows are logged at Error, everything else at Warn.
func Report(log *zap.Logger, err *errors.Error) *errors.Error {
	if err == nil || log == nil {
		return err
	}

	fields := make([]zap.Field, 0, 4)
	fields = append(fields,
		zap.String("component", string(err.Phase)),
		zap.String("kind", string(err.Kind)),
	)
	if len(err.Path) > 0 {
		fields = append(fields, zap.Strings("path", err.Path))
	}
	if err.Value != nil {
		fields = append(fields, zap.Any("value", err.Value))
	}
	if err.Cause != nil {
		fields = append(fields, zap.NamedError("cause", err.Cause))
	}

	msg := err.Detail
	if msg == "" {
		msg = string(err.Kind)
	}

	switch err.Kind {
	case errors.KindAllocation, errors.KindOverflow:
		log.Error(msg, fields...)
	default:
		log.Warn(msg, fields...)
	}
	return err
}

// Wrap converts an allocator error into an allocation failure attributed to phase and logs it.
func Wrap(log *zap.Logger, phase errors.Phase, size int, cause error) *errors.Error {
	return Report(log, errors.AllocationFailed(phase, size, cause))
}
