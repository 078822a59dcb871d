package core

import "sort"

// Entry is a node in a reconstructed tree: either a *Dir or a *File.
type Entry interface {
	Name() string
}

type File struct {
	name string
	size int64
}

type Dir struct {
	name     string
	children map[string]Entry
}

func NewFile(name string, size int64) *File {
	return &File{name: name, size: size}
}

func NewDir(name string) *Dir {
	return &Dir{
		name:     name,
		children: make(map[string]Entry),
	}
}

func (f *File) Name() string {
	return f.name
}

func (f *File) Size() int64 {
	return f.size
}

func (d *Dir) Name() string {
	return d.name
}

// Children exposes the child mapping. The shell mutates it while replaying a
// transcript; everything else only reads it.
func (d *Dir) Children() map[string]Entry {
	return d.children
}

func (d *Dir) Child(name string) (Entry, bool) {
	e, ok := d.children[name]
	return e, ok
}

// Put inserts entry under its name, replacing any existing child of that name.
func (d *Dir) Put(entry Entry) {
	d.children[entry.Name()] = entry
}

// Names returns the child names in lexical order.
func (d *Dir) Names() []string {
	names := make([]string, 0, len(d.children))
	for name := range d.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// clone returns a deep copy of entry so that no node is reachable from two
// places.
func clone(entry Entry) Entry {
	switch e := entry.(type) {
	case *File:
		return NewFile(e.name, e.size)
	case *Dir:
		d := NewDir(e.name)
		for name, child := range e.children {
			d.children[name] = clone(child)
		}
		return d
	default:
		return entry
	}
}
