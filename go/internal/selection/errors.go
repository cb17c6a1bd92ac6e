package selection

import "errors"

var (
	ErrInvalidOptions   = errors.New("selection contains unknown options")
	ErrAlreadySubmitted = errors.New("selections already submitted")
	ErrEmptySelection   = errors.New("selection must contain at least one option")
)
