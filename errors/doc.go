// Package errors provides structured error types for the rowarena containers.
//
// Errors are categorized by Phase (the component that failed) and Kind (error category).
// The Error type carries an optional field path, the offending value, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseSchema, errors.KindNotFound).
//		Path("layout", "2").
//		Detail("layout %d has no field map", 2).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseArr, nil, 10, 5)
//	err := errors.CapacityExceeded(errors.PhaseArr, 8, 4)
//
// All errors implement the standard error interface and support errors.Is/As.
// A target with an empty Phase matches errors of that Kind from any component:
//
//	errors.Is(err, &errors.Error{Kind: errors.KindAllocation})
package errors
