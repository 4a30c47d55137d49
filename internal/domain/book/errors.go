package book

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrBookNotFound       = errors.New("book not found")
	ErrNotOwner           = errors.New("you do not own this book")
	ErrManuscriptRequired = errors.New("a manuscript file (bookFile or pdfFile) is required")
)

// InputError lists form fields that failed validation (field -> rule).
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, rule := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, rule))
	}
	sort.Strings(parts)
	return "invalid book: " + strings.Join(parts, ", ")
}
