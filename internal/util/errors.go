package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in PDF")
	ErrNoAbstractSection = errors.New("no Abstract section found in text")
)
