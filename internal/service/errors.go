package service

import "errors"

var (
	ErrUidInvalid         = errors.New("uid invalid")
	ErrUidNotFound        = errors.New("uid not bound")
	ErrUidAlreadyBound    = errors.New("uid already bound")
	ErrUidCredentialOwned = errors.New("uid comes from a bound cookie")
	ErrGameUnsupported    = errors.New("game not supported")
	ErrCookieInvalid      = errors.New("cookie invalid")
	ErrCookieNotBound     = errors.New("cookie not bound to this user")
)
