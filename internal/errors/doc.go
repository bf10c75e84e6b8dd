// Package errors provides the classified error type used across graspci.
//
// Every failure that leaves a pipeline is a ClassifiedError carrying a category,
// a severity and a retry hint. The CLI adapter turns the category into the
// process exit code, so CI sees a distinct status per failure class:
//
//	err := errors.NewError(errors.CategoryExample, "example script failed").
//		WithContext("script", path).
//		WithContext("exit_code", code).
//		WithCause(runErr).
//		Build()
package errors
