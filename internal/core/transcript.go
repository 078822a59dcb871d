package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const maxTranscriptLine = 1024 * 1024

// ParseTranscript reads terminal output made of "$ cd <dir>" and "$ ls"
// commands, where every ls is followed by its listing lines.
func ParseTranscript(r io.Reader) ([]Command, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTranscriptLine)

	var commands []Command
	listing := -1 // index of the ls currently collecting output
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if rest, ok := strings.CutPrefix(line, "$"); ok {
			cmd, err := parseCommand(strings.TrimSpace(rest))
			if err != nil {
				return nil, &TranscriptError{Line: lineNo, Cause: err.Error()}
			}
			commands = append(commands, cmd)
			listing = -1
			if cmd.Kind == CommandLS {
				listing = len(commands) - 1
			}
			continue
		}

		if listing < 0 {
			return nil, &TranscriptError{Line: lineNo, Cause: "output without a preceding ls"}
		}

		entry, err := parseListingLine(line)
		if err != nil {
			return nil, &TranscriptError{Line: lineNo, Cause: err.Error()}
		}
		commands[listing].Entries[entry.Name()] = entry
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	return commands, nil
}

func parseCommand(text string) (Command, error) {
	name, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "cd":
		return CD(arg), nil
	case "ls":
		if arg != "" {
			return Command{}, fmt.Errorf("ls does not take arguments, got %q", arg)
		}
		return LS(), nil
	case "":
		return Command{}, fmt.Errorf("empty command")
	default:
		return Command{}, fmt.Errorf("unknown command %q", name)
	}
}

func parseListingLine(line string) (Entry, error) {
	head, name, ok := strings.Cut(line, " ")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return nil, fmt.Errorf("expected \"dir <name>\" or \"<size> <name>\", got %q", line)
	}

	if head == "dir" {
		return NewDir(name), nil
	}

	size, err := strconv.ParseInt(head, 10, 64)
	if err != nil || size < 0 {
		return nil, fmt.Errorf("invalid file size %q", head)
	}
	return NewFile(name, size), nil
}
