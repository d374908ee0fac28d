package flagfile

import "errors"

var (
	ErrNoPath         = errors.New("flag file path is empty")
	ErrReadFile       = errors.New("failed to read flag file")
	ErrParseFile      = errors.New("failed to parse flag file")
	ErrInvalidFlag    = errors.New("invalid flag definition")
	ErrWatch          = errors.New("failed to watch flag file")
	ErrAlreadyWatched = errors.New("flag file is already watched")
)
