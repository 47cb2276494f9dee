package errors

import stderrors "errors"

// Result types mirror the tagged payloads callers of the boundary receive.
const (
	ResultSuccess = "Success"
	ResultError   = "Error"
)

// CompileResult is the payload returned for a template batch.
type CompileResult struct {
	Type   string   `json:"type"`
	Error  *Error   `json:"error,omitempty"`
	Errors []*Error `json:"errors,omitempty"`
}

// RenderResult is the payload returned for a render.
type RenderResult struct {
	Type   string `json:"type"`
	Result string `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// RegisterResult is the payload returned for a component registration.
type RegisterResult struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// NewCompileResult converts the outcome of a compile call into its payload.
// Batch errors report their first failure under Error and every failure under
// Errors.
func NewCompileResult(err error) CompileResult {
	if err == nil {
		return CompileResult{Type: ResultSuccess}
	}
	var batch *BatchError
	if stderrors.As(err, &batch) && batch != nil {
		return CompileResult{Type: ResultError, Error: batch.First(), Errors: batch.Errors}
	}
	return CompileResult{Type: ResultError, Error: coerce(err, KindCompile)}
}

// NewRenderResult converts the outcome of a render call into its payload.
func NewRenderResult(out string, err error) RenderResult {
	if err != nil {
		return RenderResult{Type: ResultError, Error: coerce(err, KindRender)}
	}
	return RenderResult{Type: ResultSuccess, Result: out}
}

// NewRegisterResult converts the outcome of a registration into its payload.
func NewRegisterResult(err error) RegisterResult {
	if err == nil {
		return RegisterResult{Type: ResultSuccess}
	}
	e := coerce(err, KindSchemaValidation)
	return RegisterResult{Type: ResultError, Message: e.Message, Error: e}
}

func coerce(err error, fallback Kind) *Error {
	if e, ok := As(err); ok {
		return e
	}
	return Wrap(fallback, err.Error(), err)
}
