package core

import (
	"fmt"
	"io"
	"strings"
)

// Render writes an indented listing of the tree, children in name order:
//
//	- / (dir, size=48381165)
//	  - a (dir, size=94853)
//	    - f (file, size=29116)
func (ft *Filetree) Render(w io.Writer) error {
	var b strings.Builder
	renderDir(&b, ft.Root, "/", 0)
	_, err := io.WriteString(w, b.String())
	return err
}

func renderDir(b *strings.Builder, dir *Dir, label string, depth int) {
	fmt.Fprintf(b, "%s- %s (dir, size=%d)\n", strings.Repeat("  ", depth), label, Size(dir))

	for _, name := range dir.Names() {
		switch c := dir.children[name].(type) {
		case *Dir:
			renderDir(b, c, name, depth+1)
		case *File:
			fmt.Fprintf(b, "%s- %s (file, size=%d)\n", strings.Repeat("  ", depth+1), name, c.size)
		}
	}
}
