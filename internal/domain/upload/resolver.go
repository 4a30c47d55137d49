package upload

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

const (
	suffixSpace = 1_000_000_000
	// suffixStride is coprime with suffixSpace, so base+seq*stride visits every
	// 9-digit suffix once before repeating.
	suffixStride = 7_919
)

// nameSource produces <prefix>-<unix-ms>-<9 digits><ext>. The suffix starts at
// a random per-process offset and advances by an atomic sequence, so names
// never repeat within a process even inside the same millisecond.
type nameSource struct {
	base uint64
	seq  atomic.Uint64
	now  func() time.Time
}

func newNameSource() *nameSource {
	return &nameSource{base: rand.Uint64N(suffixSpace), now: time.Now}
}

func (n *nameSource) next(prefix, ext string) string {
	suffix := (n.base + n.seq.Add(1)*suffixStride) % suffixSpace
	return fmt.Sprintf("%s-%d-%09d%s", prefix, n.now().UnixMilli(), suffix, ext)
}

// Target is where files of one role are written.
type Target struct {
	Policy    Policy
	Directory string
	names     *nameSource
}

// NewName returns a collision-resistant stored name keeping the original
// extension (lower-cased).
func (t Target) NewName(originalName string) string {
	return t.names.next(t.Policy.Prefix, strings.ToLower(filepath.Ext(originalName)))
}

// Resolver maps roles to destination directories under one uploads root.
type Resolver struct {
	root     string
	policies Policies
	names    *nameSource
}

func NewResolver(root string, policies Policies) *Resolver {
	return &Resolver{root: root, policies: policies, names: newNameSource()}
}

func (r *Resolver) Root() string { return r.root }

func (r *Resolver) Policies() Policies { return r.policies }

func (r *Resolver) Resolve(role Role) (Target, error) {
	p, ok := r.policies[role]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return Target{Policy: p, Directory: filepath.Join(r.root, p.Category), names: r.names}, nil
}

// LocalPath returns the on-disk location of a stored file in a category.
// filename must be a single, non-spool path element.
func (r *Resolver) LocalPath(category, filename string) (string, Policy, error) {
	p, ok := r.policies.ByCategory(category)
	if !ok {
		return "", Policy{}, ErrUnknownCategory
	}
	if !IsStoredName(filename) {
		return "", Policy{}, ErrInvalidFilename
	}
	return filepath.Join(r.root, p.Category, filename), p, nil
}

// EnsureDirs creates the uploads root and one directory per role. It is meant
// to run once before the server accepts requests and is safe to call again.
func (r *Resolver) EnsureDirs() error {
	for _, p := range r.policies {
		dir := filepath.Join(r.root, p.Category)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create upload directory %s: %w", dir, err)
		}
	}
	return nil
}

// IsStoredName reports whether name can be a stored file name: one path
// element, no traversal, not a spool file.
func IsStoredName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return !strings.HasSuffix(name, partSuffix)
}
