// Package archive unpacks downloaded release assets.
//
// The format is chosen from the outermost file extension only. The archive is
// unpacked next to itself into a directory named after the file without that
// extension, and a single wrapping top-level directory is then flattened into
// the destination.
package archive
