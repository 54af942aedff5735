// Package syncer runs the synchronization pipeline for configured packages.
//
// For each package it looks up the latest release, selects the asset by name
// suffix, downloads and extracts it, and promotes top-level executables into
// the install directory. Packages are independent: a failure only stops the
// pipeline of the package it belongs to.
package syncer
