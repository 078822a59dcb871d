package core

import (
	"fmt"
	"strings"
)

type CommandKind int

const (
	CommandCD CommandKind = iota
	CommandLS
)

func (k CommandKind) String() string {
	switch k {
	case CommandCD:
		return "cd"
	case CommandLS:
		return "ls"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is one already-parsed transcript step. Target is only meaningful
// for cd, Entries only for ls.
type Command struct {
	Kind    CommandKind
	Target  string
	Entries map[string]Entry
}

func CD(target string) Command {
	return Command{Kind: CommandCD, Target: target}
}

// LS builds a listing command. A later entry with the same name replaces an
// earlier one.
func LS(entries ...Entry) Command {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Name()] = e
	}
	return Command{Kind: CommandLS, Entries: m}
}

// Shell replays commands against a tree it owns, tracking the working path.
type Shell struct {
	wd   []string
	root *Dir
}

func NewShell() *Shell {
	return &Shell{root: NewDir("")}
}

func (s *Shell) Root() *Dir {
	return s.root
}

func (s *Shell) Pwd() string {
	return "/" + strings.Join(s.wd, "/")
}

// Apply executes a single command.
func (s *Shell) Apply(cmd Command) error {
	switch cmd.Kind {
	case CommandCD:
		s.cd(cmd.Target)
		return nil
	case CommandLS:
		return s.extend(cmd.Entries)
	default:
		return &TranscriptError{Cause: fmt.Sprintf("unknown command %s", cmd.Kind)}
	}
}

func (s *Shell) cd(target string) {
	switch target {
	case "..":
		// popping at the root stays at the root
		if len(s.wd) > 0 {
			s.wd = s.wd[:len(s.wd)-1]
		}
	case "/", "":
		s.wd = s.wd[:0]
	default:
		s.wd = append(s.wd, target)
	}
}

// extend merges a copy of a listing into the directory at the working path.
// Names already present are overwritten, not unioned.
func (s *Shell) extend(entries map[string]Entry) error {
	dir, err := s.resolve()
	if err != nil {
		return err
	}
	for _, e := range entries {
		dir.Put(clone(e))
	}
	return nil
}

func (s *Shell) resolve() (*Dir, error) {
	dir := s.root
	for i, name := range s.wd {
		path := "/" + strings.Join(s.wd[:i+1], "/")
		child, ok := dir.Child(name)
		if !ok {
			return nil, &TranscriptError{Path: path, Cause: "directory not found"}
		}
		next, ok := child.(*Dir)
		if !ok {
			return nil, &TranscriptError{Path: path, Cause: "that's a file, not a directory"}
		}
		dir = next
	}
	return dir, nil
}
