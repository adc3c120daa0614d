package kgain

import "errors"

// Sentinel errors for the kgain package.
// Use errors.Is to check: errors.Is(err, kgain.ErrInvalidState)
var (
	ErrInvalidParameters  = errors.New("kgain: invalid parameters")
	ErrUnsupportedVersion = errors.New("kgain: unsupported model version")
	ErrInvalidState       = errors.New("kgain: invalid memory state")
	ErrInvalidElapsed     = errors.New("kgain: invalid elapsed days")
	ErrInvalidWindow      = errors.New("kgain: invalid integration window")
	ErrInvalidConfig      = errors.New("kgain: invalid estimator config")
)
