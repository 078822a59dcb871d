package core

import "errors"

type Filetree struct {
	Root *Dir
}

// BuildFiletree replays commands in order on a fresh shell. It stops at the
// first command that cannot be applied, and rejects a finished tree whose
// total size does not fit in an int64.
func BuildFiletree(commands []Command) (*Filetree, error) {
	shell := NewShell()

	for i, cmd := range commands {
		if err := shell.Apply(cmd); err != nil {
			var te *TranscriptError
			if errors.As(err, &te) && te.Command == 0 {
				te.Command = i + 1
			}
			return nil, err
		}
	}

	// every directory is at most the root, so checking the root covers them all
	if _, err := checkedSize(shell.Root(), "/"); err != nil {
		return nil, err
	}

	return &Filetree{Root: shell.Root()}, nil
}

func (ft *Filetree) TotalSize() int64 {
	return Size(ft.Root)
}

func (ft *Filetree) DirectorySizes() []int64 {
	return DirectorySizes(ft.Root)
}

// Counts returns the number of directories (root included) and files.
func (ft *Filetree) Counts() (dirs, files int) {
	var walk func(d *Dir)
	walk = func(d *Dir) {
		dirs++
		for _, child := range d.children {
			switch c := child.(type) {
			case *Dir:
				walk(c)
			case *File:
				files++
			}
		}
	}
	walk(ft.Root)
	return dirs, files
}
