package agentai

// Status tells callers where a Result's value came from.
type Status string

const (
	// StatusOK means the value came from the model and passed validation.
	StatusOK Status = "ok"
	// StatusFallback means the model call or validation failed and the value
	// is the built-in fallback. Err holds the cause.
	StatusFallback Status = "fallback"
	// StatusError means the call itself was invalid (for example a nil agent)
	// and Value should not be used.
	StatusError Status = "error"
)

// Result carries a decision value together with how it was obtained.
type Result[T any] struct {
	Value  T      `json:"value"`
	Status Status `json:"status"`
	Err    error  `json:"-"`
}

// Degraded reports whether the value is anything other than a validated
// model answer.
func (r Result[T]) Degraded() bool {
	return r.Status != StatusOK
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

func invalid[T any](err error) Result[T] {
	return Result[T]{Status: StatusError, Err: err}
}
