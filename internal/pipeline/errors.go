package pipeline

import "errors"

var (
	ErrDecode   = errors.New("pdf could not be decoded")
	ErrExtract  = errors.New("document extraction failed")
	ErrTimeout  = errors.New("document parse timed out")
	ErrNotPDF   = errors.New("only PDF files are accepted")
	ErrTooLarge = errors.New("file exceeds upload limit")
)
