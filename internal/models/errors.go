package models

import "errors"

// Terminal import errors. Each one fails the current request; none are
// retried by the pipeline itself. Row-level problems are not errors,
// they reduce the accepted row count instead.
var (
	// ErrUnsupportedFormat means the upload is neither CSV nor PDF by
	// extension or declared media type.
	ErrUnsupportedFormat = errors.New("only CSV or PDF files are allowed")

	// ErrParse means the file could not be read as its declared format,
	// including a PDF with no extractable text when OCR was not requested.
	ErrParse = errors.New("failed to parse statement")

	// ErrNoRowsDetected means the file parsed but zero rows survived
	// normalization.
	ErrNoRowsDetected = errors.New("no rows detected")

	// ErrNoAccountsAvailable means the user has no eligible destination
	// account, so nothing can be imported.
	ErrNoAccountsAvailable = errors.New("no accounts found")

	// ErrImportFailed means the storage layer faulted during the atomic
	// commit; the whole batch was rolled back.
	ErrImportFailed = errors.New("failed to import")
)
