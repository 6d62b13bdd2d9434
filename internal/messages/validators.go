package messages

import (
	"errors"
	"strings"
)

// MaxContent is the largest message body accepted, in bytes, after trimming.
const MaxContent = 4 * 1024

var (
	ErrEmptyContent   = errors.New("message content is empty")
	ErrContentTooLong = errors.New("message content is too long")
)

// NormalizeContent trims surrounding whitespace and enforces the size limits.
func NormalizeContent(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyContent
	}
	if len(text) > MaxContent {
		return "", ErrContentTooLong
	}
	return text, nil
}
