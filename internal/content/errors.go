package content

import "errors"

var (
	ErrDataFetch          = errors.New("could not load data")
	ErrWrite              = errors.New("could not save changes")
	ErrStorage            = errors.New("file storage error")
	ErrInvalidDraft       = errors.New("invalid publication")
	ErrUnknownFaculty     = errors.New("unknown faculty")
	ErrUnknownContentType = errors.New("unknown content type")
	ErrFileTooLarge       = errors.New("file exceeds the upload limit")
	ErrMediaAttach        = errors.New("publication saved without its file")
	ErrNotFound           = errors.New("publication not found")
)
