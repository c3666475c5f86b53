package assets

import "errors"

var (
	ErrNotFound         = errors.New("asset not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNameExhausted    = errors.New("no free name left for this folder")
	ErrInvalidName      = errors.New("invalid name")
)
