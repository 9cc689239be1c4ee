package domain

import "errors"

var (
	ErrEmptyTitle          = errors.New("title is required")
	ErrInvalidSeverity     = errors.New("invalid severity")
	ErrInvalidCoordinates  = errors.New("coordinates out of range")
	ErrInvalidRadius       = errors.New("invalid radius")
	ErrNoFieldsToUpdate    = errors.New("no fields to update")
	ErrNotFound            = errors.New("hotspot not found")
	ErrPendingHotspot      = errors.New("hotspot is not yet confirmed")
	ErrPhotoStoreDisabled  = errors.New("photo uploads are disabled")
	ErrLocationUnavailable = errors.New("location unavailable")
)
