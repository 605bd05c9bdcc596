// Package types provides common type definitions shared by the compiler,
// the memory tracker and the build orchestrator. It exists to avoid circular
// dependencies between those packages.
package types

// LinkedAsset is one edge of the linked-asset dependency graph: File
// references Asset through an href or src attribute.
type LinkedAsset struct {
	// File is the document holding the reference
	File string
	// Asset is the resolved path of the referenced file
	Asset string
	// IsComponent marks references made with rel="component"
	IsComponent bool
}

// Signal names a condition that forces reprocessing regardless of
// fingerprints.
type Signal string

const (
	SignalEditedComponent Signal = "edited-component"
	SignalEditedAsset     Signal = "edited-asset"
	SignalEditedEnv       Signal = "edited-env"
)
