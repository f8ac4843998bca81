// Package layout moves the extracted archive tree into the folder the
// runtime expects.
package layout
