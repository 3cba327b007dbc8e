package http

import "github.com/pkg/errors"

var (
	errTooManyRequests = errors.New("rate limit exceeded")
	errForbidden       = errors.New("missing or invalid admin key")
)
