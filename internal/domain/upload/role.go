package upload

import (
	"path/filepath"
	"sort"
	"strings"
)

// Role is the functional category of an uploaded file. It drives validation,
// destination directory and the stored-name prefix.
type Role string

const (
	RoleManuscript Role = "book-manuscript"
	RoleCover      Role = "cover-image"
	RoleProfile    Role = "profile-picture"
)

const (
	DefaultManuscriptMaxBytes int64 = 20 * 1024 * 1024
	DefaultImageMaxBytes      int64 = 5 * 1024 * 1024
)

// Policy is the full storage and validation rule set for one role.
type Policy struct {
	Role     Role
	Category string // subdirectory and public path segment: books, covers, profiles
	Prefix   string // stored-name prefix: book, cover, profile
	// Extensions maps an allowed lower-case extension to the content type its
	// bytes must sniff as. The same table drives the served Content-Type.
	Extensions map[string]string
	MaxBytes   int64
}

// ContentTypeFor returns the content type served for a stored file name.
func (p Policy) ContentTypeFor(filename string) string {
	if ct, ok := p.Extensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsImage reports whether the role holds pictures (cached for 24h when served).
func (p Policy) IsImage() bool {
	return p.Role == RoleCover || p.Role == RoleProfile
}

func (p Policy) allowedExtensions() []string {
	exts := make([]string, 0, len(p.Extensions))
	for ext := range p.Extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Policies indexes the policy of every role.
type Policies map[Role]Policy

func imageExtensions() map[string]string {
	return map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
	}
}

// DefaultPolicies returns the storage rules for every role. Non-positive
// ceilings fall back to the 20 MiB / 5 MiB defaults.
func DefaultPolicies(manuscriptMax, imageMax int64) Policies {
	if manuscriptMax <= 0 {
		manuscriptMax = DefaultManuscriptMaxBytes
	}
	if imageMax <= 0 {
		imageMax = DefaultImageMaxBytes
	}
	return Policies{
		RoleManuscript: {
			Role:     RoleManuscript,
			Category: "books",
			Prefix:   "book",
			Extensions: map[string]string{
				".pdf":  "application/pdf",
				".epub": "application/epub+zip",
				".mobi": "application/x-mobipocket-ebook",
			},
			MaxBytes: manuscriptMax,
		},
		RoleCover: {
			Role:       RoleCover,
			Category:   "covers",
			Prefix:     "cover",
			Extensions: imageExtensions(),
			MaxBytes:   imageMax,
		},
		RoleProfile: {
			Role:       RoleProfile,
			Category:   "profiles",
			Prefix:     "profile",
			Extensions: imageExtensions(),
			MaxBytes:   imageMax,
		},
	}
}

// ByCategory finds the policy serving a public category segment.
func (ps Policies) ByCategory(category string) (Policy, bool) {
	for _, p := range ps {
		if p.Category == category {
			return p, true
		}
	}
	return Policy{}, false
}

// ContentTypeFor looks the extension up across every role.
func (ps Policies) ContentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, p := range ps {
		if ct, ok := p.Extensions[ext]; ok {
			return ct
		}
	}
	return "application/octet-stream"
}
