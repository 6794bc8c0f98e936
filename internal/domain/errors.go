package domain

import "fmt"

// ProviderError wraps a network or non-success response from the forecast
// provider. Fatal: a single failure aborts the run before any star write.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DataShapeError reports a payload that does not match the minimum expected
// structure. Fatal for the stage that detects it.
type DataShapeError struct {
	Context string
	Reason  string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("data shape: %s: %s", e.Context, e.Reason)
}
