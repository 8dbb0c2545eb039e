package render

import "errors"

var (
	// ErrDeriveFromTargetInvalid indicates a derive-from target that is not
	// mapping-like.
	ErrDeriveFromTargetInvalid = errors.New("derive-from target is not a mapping")

	// ErrMultipleDeriveFrom indicates a second derive-from in one scope.
	ErrMultipleDeriveFrom = errors.New("multiple derive-from in one scope")

	// ErrResolutionDepthExceeded indicates a reference chain or nested
	// expansion that did not terminate within the configured bounds.
	ErrResolutionDepthExceeded = errors.New("resolution depth exceeded")
)

// Error locates a render failure within the template being rendered.
type Error struct {
	// Path is the key path of the failing value, e.g. "servers[1].timeout".
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "rendering: " + e.Err.Error()
	}
	return "rendering " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrap attaches path to err unless a deeper frame already did.
func wrap(path string, err error) error {
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	return &Error{Path: path, Err: err}
}
