// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ErrorKind classifies the origin of a failure delivered to a consumer.
type ErrorKind string

const (
	// ErrorApplication means the report service reported a failure.
	ErrorApplication ErrorKind = "application"

	// ErrorTransport means the connection could not be established, was
	// interrupted, or went silent.
	ErrorTransport ErrorKind = "transport"

	// ErrorParse means a payload did not match any expected shape.
	ErrorParse ErrorKind = "parse"
)

// ErrorSignal is the single user-facing error outcome of a submission.
// It implements error so it can be carried through wrapped error chains.
type ErrorSignal struct {
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}

func (e ErrorSignal) Error() string {
	return string(e.Kind) + ": " + e.Message
}
