package donor

import "errors"

var (
	ErrMissingExternalID      = errors.New("missing constituent id")
	ErrMissingLastName        = errors.New("missing last name")
	ErrInvalidEmail           = errors.New("invalid email")
	ErrMissingConstituentLink = errors.New("missing constituent link")
	ErrInvalidGiftAmount      = errors.New("gift amount must be positive")
	ErrMissingGiftDate        = errors.New("missing gift date")
	ErrMissingContactDate     = errors.New("missing contact date")
	ErrMissingContactType     = errors.New("missing contact type")
	ErrConstituentNotFound    = errors.New("constituent not found")
	ErrUploadJobNotFound      = errors.New("upload job not found")
	ErrUnknownDataType        = errors.New("unknown data type")
)
