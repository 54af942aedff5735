// Package promote installs executables from an extracted release tree.
//
// Only the top level of the tree is scanned. Every regular file with at least
// one execute bit is copied into the install directory and atomically replaces
// any file of the same name there.
package promote
