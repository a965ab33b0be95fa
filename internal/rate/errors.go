package rate

import "errors"

// ErrUnknownCategory reports a category outside the closed set.
var ErrUnknownCategory = errors.New("unknown rate limit category")
