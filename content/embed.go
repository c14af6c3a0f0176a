// Package content embeds the default training course shipped with the binary.
package content

import (
	"embed"
	"io/fs"
)

//go:embed course
var files embed.FS

// Course returns the embedded course rooted at its manifest directory.
func Course() fs.FS {
	sub, err := fs.Sub(files, "course")
	if err != nil {
		panic(err)
	}
	return sub
}
