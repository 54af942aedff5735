// Package release contains the core domain types of the sync pipeline.
//
// It defines Package (what to track), Release and Asset (what upstream
// published), asset selection by name suffix, and the error taxonomy shared
// by every pipeline stage.
package release
