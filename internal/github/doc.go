// Package github talks to the GitHub releases API.
//
// APIClient looks up the latest release of a repository and streams release
// assets to disk under a byte cap. Every call is a single attempt; failures
// are reported with the error taxonomy of the release package.
package github
