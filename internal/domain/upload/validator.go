package upload

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of each part is inspected before anything touches disk.
const sniffLen = 3072

// Result is the outcome of validating one file against its role.
type Result struct {
	OK     bool
	Reason string
}

func accept() Result { return Result{OK: true} }

func reject(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Validate applies the single policy used for every role: the extension must be
// allowed for the role and the sniffed content type must be the one that
// extension stands for. The size must be within (0, MaxBytes].
func Validate(p Policy, filename, sniffedType string, sizeBytes int64) Result {
	if r := ValidateType(p, filename, sniffedType); !r.OK {
		return r
	}
	return ValidateSize(p, sizeBytes)
}

// ValidateType is the part of Validate that can run before the body is read.
func ValidateType(p Policy, filename, sniffedType string) Result {
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := p.Extensions[ext]
	if !ok {
		return reject("only %s files are allowed for %s", strings.Join(p.allowedExtensions(), ", "), p.Role)
	}
	if sniffedType != want {
		return reject("file content (%s) does not match its %s extension", displayType(sniffedType), ext)
	}
	return accept()
}

func ValidateSize(p Policy, sizeBytes int64) Result {
	switch {
	case sizeBytes <= 0:
		return reject("file is empty")
	case sizeBytes > p.MaxBytes:
		return reject("file too large: %s accepts at most %d bytes", p.Role, p.MaxBytes)
	}
	return accept()
}

// Validate resolves role to its policy first. Unknown roles are always rejected.
func (ps Policies) Validate(role Role, filename, sniffedType string, sizeBytes int64) Result {
	p, ok := ps[role]
	if !ok {
		return reject("%v: %s", ErrUnknownRole, role)
	}
	return Validate(p, filename, sniffedType, sizeBytes)
}

// Sniff detects the content type of head. When the detected type or one of its
// ancestors is allowed by p, that allowed type is returned, so that e.g. an
// animated PNG still reports image/png.
func Sniff(p Policy, head []byte) string {
	detected := mimetype.Detect(head)
	for m := detected; m != nil; m = m.Parent() {
		for _, ct := range p.Extensions {
			if m.Is(ct) {
				return ct
			}
		}
	}
	return baseType(detected.String())
}

func baseType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

func displayType(ct string) string {
	if ct == "" {
		return "unknown"
	}
	return ct
}
