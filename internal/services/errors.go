package services

import "errors"

// Data service errors
var (
	// Artifact errors: the pipeline has not produced the requested file yet
	ErrArtifactNotFound = errors.New("artifact not generated yet")

	// Query errors
	ErrUnknownMetric    = errors.New("unknown metric")
	ErrNoLocations      = errors.New("no locations requested")
	ErrLocationNotFound = errors.New("location not found in dataset")

	// File serving errors
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrInvalidFilePath = errors.New("invalid file path")

	// General errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
