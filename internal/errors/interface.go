package errors

// ErrorCode is the stable, machine-readable name of a failure. It is what the
// report prints and what logs carry as error_code.
type ErrorCode string

// Coded is anything that can name its failure with an ErrorCode.
type Coded interface {
	Code() ErrorCode
}

// Error is a coded error with optional message and payload.
type Error interface {
	error
	Coded
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
