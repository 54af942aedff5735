// Package status prints the latest recorded sync outcome of every package.
package status
