package kubernix

import (
	"errors"
	"fmt"
)

// FailureKind classifies an error by the bootstrap stage that produced it.
// The supervisor reacts differently depending on the kind: precondition and
// provisioning failures abort the bootstrap, an unexpected exit triggers the
// teardown of everything already running, and teardown failures are only
// collected.
type FailureKind int16

const (
	UnknownFailure FailureKind = iota
	Precondition
	Provisioning
	Readiness
	UnexpectedExit
	Teardown
	UserCancel
)

func (k FailureKind) String() string {
	switch k {
	case Precondition:
		return "precondition"
	case Provisioning:
		return "provisioning"
	case Readiness:
		return "readiness"
	case UnexpectedExit:
		return "unexpected-exit"
	case Teardown:
		return "teardown"
	case UserCancel:
		return "user-cancel"
	}
	return "unknown"
}

// Failure is an error carrying its FailureKind. It wraps the underlying
// cause, so errors.Is and errors.As keep working through it.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure wraps err with the given kind. A nil err yields nil, so call
// sites can wrap unconditionally.
func NewFailure(kind FailureKind, err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Kind: kind, Err: err}
}

func Failuref(kind FailureKind, format string, args ...any) error {
	return &Failure{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost Failure wrapped in err, or
// UnknownFailure when err carries no classification.
func KindOf(err error) FailureKind {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return UnknownFailure
}

func IsKind(err error, kind FailureKind) bool {
	return KindOf(err) == kind
}
