package models

import "errors"

// Run-level errors abort a pipeline run. Item-level errors are logged and the
// run moves on to the next candidate.
var (
	// ErrSourceUnavailable indicates the image source could not be listed or read.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrImageUnreadable indicates an image could not be opened or decoded.
	ErrImageUnreadable = errors.New("image unreadable")

	// ErrClassificationFailed indicates the vision provider gave no usable metadata.
	ErrClassificationFailed = errors.New("classification failed")

	// ErrResolverUnavailable indicates the marketplace could not be reached.
	ErrResolverUnavailable = errors.New("resolver unavailable")

	// ErrCatalogWriteFailed indicates the catalog could not be persisted.
	ErrCatalogWriteFailed = errors.New("catalog write failed")

	// ErrSnapshotPublishFailed indicates the catalog was saved but the public snapshot was not refreshed.
	ErrSnapshotPublishFailed = errors.New("snapshot publish failed")

	// ErrMissingSignature indicates a change notification without a usable signature header.
	ErrMissingSignature = errors.New("missing signature")

	// ErrInvalidSignature indicates a change notification whose signature does not match its body.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrRunInProgress indicates another run already holds the pipeline.
	ErrRunInProgress = errors.New("run in progress")
)
