package feed

import "errors"

var (
	ErrNotFound      = errors.New("feed: sequence not found")
	ErrClosed        = errors.New("feed: closed")
	ErrCorrupt       = errors.New("feed: corrupt log")
	ErrBlockTooLarge = errors.New("feed: block too large")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
