package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/hsdnet/controller/internal/model"
)

// LineError pairs a 1-indexed source line with the parse error it
// produced, so a caller can log and skip a malformed policy line
// while still surfacing what was skipped.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("policy line %d (%q): %v", e.Line, e.Text, e.Err)
}

// ParsePolicyFile reads every non-comment, non-blank line of path
// through ParsePolicyLine. Lines that fail to parse are collected as
// LineErrors and skipped; they never abort the rest of the file.
func ParsePolicyFile(path string) ([]model.Policy, []LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("opening policy file %s: %w", path, err)
	}
	defer f.Close()

	var policies []model.Policy
	var errs []LineError

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := ParsePolicyLine(line)
		if err != nil {
			errs = append(errs, LineError{Line: lineNo, Text: line, Err: err})
			continue
		}
		policies = append(policies, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}
	return policies, errs, nil
}

// WritePolicyFile atomically replaces path's contents with the
// canonical encoding of policies, one per line, in order. Atomicity is
// via write-to-temp-then-rename in the same directory, so a reader
// never observes a half-written file.
func WritePolicyFile(path string, policies []model.Policy) error {
	var sb strings.Builder
	for _, p := range policies {
		sb.WriteString(p.Encode())
		sb.WriteByte('\n')
	}
	return atomicWriteFile(path, []byte(sb.String()))
}

func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}
