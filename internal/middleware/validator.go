package middleware

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Input validation for console request payloads.

const maxNoteLength = 4096

// ValidateNoteEntry rejects empty, oversized or control-character note text.
func ValidateNoteEntry(entry string) error {
	if strings.TrimSpace(entry) == "" {
		return fmt.Errorf("note entry cannot be empty")
	}
	if len(entry) > maxNoteLength {
		return fmt.Errorf("note entry exceeds %d characters", maxNoteLength)
	}
	for _, r := range entry {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return fmt.Errorf("note entry contains control characters")
		}
	}
	return nil
}

var pipelineIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidatePipelineID checks the upstream pipeline id format.
func ValidatePipelineID(id string) error {
	if !pipelineIDPattern.MatchString(id) {
		return fmt.Errorf("invalid pipeline id")
	}
	return nil
}

// ValidateSnippetPath blocks traversal and absolute paths in snippet lookups.
func ValidateSnippetPath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.HasPrefix(path, "/") || strings.Contains(path, "..") {
		return fmt.Errorf("invalid file path")
	}
	return nil
}
