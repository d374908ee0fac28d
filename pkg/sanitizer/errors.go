package sanitizer

import "errors"

var (
	ErrURLTooLarge  = errors.New("sanitizer: context exceeds url size limit")
	ErrBodyTooLarge = errors.New("sanitizer: context exceeds body size limit")
	ErrNotEncodable = errors.New("sanitizer: context cannot be encoded")
)
