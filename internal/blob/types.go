// Package blob is the entry point to artifact storage. Callers depend on
// blob.Store; only this package imports the concrete drivers.
package blob

import (
	"herdcore/internal/blob/core"
)

type (
	// Driver identifies a backend.
	Driver = core.Driver
	// PutOptions describes an artifact being written.
	PutOptions = core.PutOptions
	// Info describes a stored artifact.
	Info = core.Info
	// Store is implemented by every driver.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// Sentinel errors wrapped by drivers.
var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
)
