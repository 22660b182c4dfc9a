package sigvival

import "errors"

var (
	// ErrInvalidSignature is returned when a gene signature is empty, or when
	// none of its genes are present in the expression matrix.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInsufficientSamples is returned when a stratified group holds fewer
	// samples than are needed for survival estimation.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrDatasetUnavailable is returned when a requested cancer type has no
	// backing expression file.
	ErrDatasetUnavailable = errors.New("dataset unavailable")

	// ErrInvalidRequest is returned when a request fails validation at the
	// boundary, before any data is loaded.
	ErrInvalidRequest = errors.New("invalid request")
)

// IsUserError reports whether err is something the user can fix by adjusting
// their inputs and resubmitting.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrInsufficientSamples) ||
		errors.Is(err, ErrDatasetUnavailable) ||
		errors.Is(err, ErrInvalidRequest)
}
