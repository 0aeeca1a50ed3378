// Package source holds the minimal position information threaded through
// the AST, IR and diagnostics so compile errors can name the offending
// construct (spec §7), mirroring BasicBlock's source_location field in
// the Rust original.
package source

import "fmt"

// Location is a half-open byte range into the original source text.
type Location struct {
	Start int
	End   int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Start, l.End)
}
