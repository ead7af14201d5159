// Package errs defines common error variables used across the application.
package errs

import "errors"

// Input errors.
var (
	// ErrInvalidURL indicates that the given video URL cannot be parsed.
	ErrInvalidURL = errors.New("invalid url")
	// ErrVideoIDNotFound indicates that no video id could be extracted from the URL.
	ErrVideoIDNotFound = errors.New("video id not found")
	// ErrNoSelection indicates that the user selected no clips.
	ErrNoSelection = errors.New("no clips selected")
	// ErrInvalidSelection indicates that a selection token cannot be parsed.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrInvalidPadding indicates that the padding is negative or not a number.
	ErrInvalidPadding = errors.New("invalid padding")
)

// Metadata provider errors.
var (
	// ErrMetadataUnavailable indicates that the clip list could not be fetched or is empty.
	ErrMetadataUnavailable = errors.New("clip metadata unavailable")
)

// Format catalog errors.
var (
	// ErrFormatProbeFailed indicates that the engine could not enumerate formats for a source.
	ErrFormatProbeFailed = errors.New("format probe failed")
	// ErrFormatNotFound indicates that the requested format id is absent from the catalog.
	ErrFormatNotFound = errors.New("format not found")
)

// Clip download errors.
var (
	// ErrEngineFailure indicates that the media engine failed to produce the clip.
	ErrEngineFailure = errors.New("engine failure")
	// ErrFilesystem indicates that the output directory could not be prepared.
	ErrFilesystem = errors.New("filesystem error")
	// ErrWorkerPanic indicates that a clip worker panicked.
	ErrWorkerPanic = errors.New("worker panic")
)

// Dependency errors.
var (
	// ErrBinaryNotFound indicates that the required binary was not found.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrUnsupportedPlatform indicates that the current platform is not supported.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Proxy errors.
var (
	// ErrNoProxiesAvailable indicates that no proxies are available.
	ErrNoProxiesAvailable = errors.New("no proxies available")
)
