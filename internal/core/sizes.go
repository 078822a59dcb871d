package core

import (
	"fmt"
	"math"
)

// Size returns the total byte size of entry. Directory sizes are recomputed
// from their contents on every call. Totals of trees returned by
// BuildFiletree always fit in an int64.
func Size(entry Entry) int64 {
	switch e := entry.(type) {
	case *File:
		return e.size
	case *Dir:
		var total int64
		for _, child := range e.children {
			total += Size(child)
		}
		return total
	default:
		return 0
	}
}

// DirectorySizes returns the size of every directory under root exactly once,
// root first, then pre-order with children in name order. Files are skipped.
func DirectorySizes(root *Dir) []int64 {
	var sizes []int64
	collectSizes(root, &sizes)
	return sizes
}

// collectSizes reserves the directory's slot before descending so the parent
// precedes its children, then fills it in once the subtree is summed.
func collectSizes(dir *Dir, sizes *[]int64) int64 {
	slot := len(*sizes)
	*sizes = append(*sizes, 0)

	var total int64
	for _, name := range dir.Names() {
		switch c := dir.children[name].(type) {
		case *File:
			total += c.size
		case *Dir:
			total += collectSizes(c, sizes)
		}
	}

	(*sizes)[slot] = total
	return total
}

// SmallDirectoryTotal sums every size that is at most threshold.
func SmallDirectoryTotal(sizes []int64, threshold int64) int64 {
	var total int64
	for _, s := range sizes {
		if s <= threshold {
			total += s
		}
	}
	return total
}

// SmallestSufficient returns the smallest size that is at least required.
func SmallestSufficient(sizes []int64, required int64) (int64, error) {
	found := false
	var best int64
	for _, s := range sizes {
		if s < required {
			continue
		}
		if !found || s < best {
			best = s
			found = true
		}
	}
	if !found {
		return 0, ErrNoSufficientDirectory
	}
	return best, nil
}

// checkedSize sums entry like Size but fails instead of wrapping, and rejects
// negative file sizes. path is the location of entry in the tree.
func checkedSize(entry Entry, path string) (int64, error) {
	switch e := entry.(type) {
	case *File:
		if e.size < 0 {
			return 0, &TranscriptError{Path: path, Cause: fmt.Sprintf("negative file size %d", e.size)}
		}
		return e.size, nil
	case *Dir:
		var total int64
		for _, name := range e.Names() {
			n, err := checkedSize(e.children[name], childPath(path, name))
			if err != nil {
				return 0, err
			}
			if n > math.MaxInt64-total {
				return 0, &TranscriptError{Path: path, Cause: "directory size exceeds the largest representable size"}
			}
			total += n
		}
		return total, nil
	default:
		return 0, nil
	}
}

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
