package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrExternalTool = errors.New("external tool failure")
	ErrCodec        = errors.New("codec failure")
	ErrStore        = errors.New("store failure")
)

// ValidationError represents a detailed input validation error. It is
// raised before any processing begins; no temporary artifacts exist yet.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ToolError represents a failed external raster-tool invocation. It is
// fatal for the enclosing unit of work and never retried.
type ToolError struct {
	Tool   string // Binary that was invoked
	Stage  string // Pipeline stage (extent, reproject, clip, render)
	Stderr string // Captured standard error, trimmed
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed during %s: %v: %s", e.Tool, e.Stage, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s failed during %s: %v", e.Tool, e.Stage, e.Err)
}

// Unwrap returns the base external-tool error.
func (e *ToolError) Unwrap() error {
	return ErrExternalTool
}

// CodecError represents an image decode/encode failure; fatal for the
// tile and its cell.
type CodecError struct {
	Path string // Tile image path
	Op   string // Operation that failed (decode, encode, quantize)
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	return fmt.Sprintf("codec error during %s of %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the base codec error.
func (e *CodecError) Unwrap() error {
	return ErrCodec
}

// StoreError represents a tile database open/write failure; fatal for
// the cell.
type StoreError struct {
	Path string // Database file path
	Op   string // Operation that failed (open, metadata, tile, close)
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s of %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the base store error.
func (e *StoreError) Unwrap() error {
	return ErrStore
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
