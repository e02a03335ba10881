// Package blob is the entry point to blob storage. Callers depend on Store
// and construct drivers through Open or the New* helpers; the drivers live
// under internal/infra/blob.
package blob

import (
	"openbis/internal/blob/core"
)

type (
	// Driver names a blob store backend.
	Driver = core.Driver
	// PutOptions carries the optional attributes of a new blob.
	PutOptions = core.PutOptions
	// SignedURLOptions controls PresignURL.
	SignedURLOptions = core.SignedURLOptions
	// Info describes a stored blob.
	Info = core.Info
	// Store keeps attachment content and export artifacts.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
	ErrUnsupported = core.ErrUnsupported
	ErrInvalidKey  = core.ErrInvalidKey
)
