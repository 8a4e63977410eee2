package fault

import (
	"errors"
	"fmt"
)

type faultCode string

const (
	UnknownCode          faultCode = "unknown"
	NotFoundCode         faultCode = "not_found"
	BadInputCode         faultCode = "bad_input"
	PermissionDeniedCode faultCode = "permission_denied"
)

type FieldErrorsMetadata map[string][]string

// Fault is an application error carrying a code the API layer turns into a
// status. Match it with errors.As.
type Fault interface {
	error
	Code() faultCode
	Message() string
	Metadata() any
	Original() error
}

type fault struct {
	code     faultCode
	message  string
	metadata any
	original error
}

func New(code faultCode, message string) fault {
	return fault{
		code:    code,
		message: message,
	}
}

// NotFound reports that the resource with the given id does not exist.
func NotFound(resource string, id any) fault {
	return New(NotFoundCode, resource+" not found.").WithMetadata(map[string]any{"id": id})
}

// CodeOf returns the code of the first fault in err's chain. Errors without
// a fault are UnknownCode.
func CodeOf(err error) faultCode {
	var f Fault
	if errors.As(err, &f) {
		return f.Code()
	}
	return UnknownCode
}

func (f fault) WithMetadata(metadata any) fault {
	e := f
	e.metadata = metadata
	return e
}

func (f fault) WithOriginal(original error) fault {
	e := f
	e.original = original
	return e
}

func (f fault) Code() faultCode {
	return f.code
}

func (f fault) Message() string {
	return f.message
}

func (f fault) Metadata() any {
	return f.metadata
}

func (f fault) Original() error {
	return f.original
}

func (f fault) Unwrap() error {
	return f.original
}

func (f fault) Error() string {
	if f.original != nil {
		return fmt.Sprintf("%s: %v", f.message, f.original)
	}
	return f.message
}
