// Package files serves stored uploads: local disk first, then the remote blob
// store either proxied through this process or by redirect.
package files

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"novelistan/internal/domain/upload"
	"novelistan/internal/pkg/blob"
)

var ErrNotFound = errors.New("file not found")

type Kind int

const (
	KindLocal Kind = iota + 1
	KindRedirect
	KindProxied
)

// Retrieval is where the bytes of one stored file come from.
type Retrieval struct {
	Kind     Kind
	Policy   upload.Policy
	Filename string

	// KindLocal
	LocalPath string
	ModTime   time.Time

	// KindRedirect
	RedirectURL string

	// KindProxied; the caller closes Object.Body.
	Object *blob.Object
}

// ContentType is the type to serve: upstream's for proxied bytes, otherwise the
// one the role's extension table assigns.
func (r *Retrieval) ContentType() string {
	if r.Kind == KindProxied && r.Object != nil {
		if ct := strings.TrimSpace(r.Object.ContentType); ct != "" && ct != "application/octet-stream" {
			return ct
		}
	}
	return r.Policy.ContentTypeFor(r.Filename)
}

type Options struct {
	// Remote is consulted when a file is missing locally. Nil disables the fallback.
	Remote blob.Store
	// RedirectCategories answer with a redirect to Remote instead of proxying.
	RedirectCategories []string
	Observer           upload.Observer
	Logger             *zap.Logger
}

type Gateway struct {
	resolver *upload.Resolver
	remote   blob.Store
	redirect map[string]bool
	obs      upload.Observer
	log      *zap.Logger
}

func NewGateway(resolver *upload.Resolver, opts Options) *Gateway {
	g := &Gateway{
		resolver: resolver,
		remote:   opts.Remote,
		redirect: make(map[string]bool, len(opts.RedirectCategories)),
		obs:      opts.Observer,
		log:      opts.Logger,
	}
	for _, c := range opts.RedirectCategories {
		g.redirect[strings.TrimSpace(c)] = true
	}
	if g.obs == nil {
		g.obs = upload.NopObserver{}
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	return g
}

// Remote returns the configured fallback store, or nil.
func (g *Gateway) Remote() blob.Store { return g.remote }

// Retrieve locates filename in category. It returns upload.ErrUnknownCategory,
// upload.ErrInvalidFilename, ErrNotFound or an *upload.StorageIOError.
func (g *Gateway) Retrieve(ctx context.Context, category, filename string) (*Retrieval, error) {
	path, p, err := g.resolver.LocalPath(category, filename)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.Mode().IsRegular():
		g.obs.RecordRetrieval(category, upload.SourceLocal)
		return &Retrieval{Kind: KindLocal, Policy: p, Filename: filename, LocalPath: path, ModTime: info.ModTime()}, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		g.obs.RecordRetrieval(category, upload.SourceError)
		return nil, &upload.StorageIOError{Op: "stat", Role: p.Role, Filename: filename, Offset: -1, Err: err}
	}

	// The remote container is flat, so only names carrying the category's
	// prefix can belong to it.
	if g.remote == nil || !strings.HasPrefix(filename, p.Prefix+"-") {
		g.obs.RecordRetrieval(category, upload.SourceNotFound)
		return nil, ErrNotFound
	}

	if g.redirect[category] {
		g.obs.RecordRetrieval(category, upload.SourceRedirect)
		return &Retrieval{Kind: KindRedirect, Policy: p, Filename: filename, RedirectURL: g.remote.URL(filename)}, nil
	}

	obj, err := g.remote.Get(ctx, filename)
	if errors.Is(err, blob.ErrNotFound) {
		g.obs.RecordRetrieval(category, upload.SourceNotFound)
		return nil, ErrNotFound
	}
	if err != nil {
		g.obs.RecordRetrieval(category, upload.SourceError)
		return nil, &upload.StorageIOError{Op: "fetch", Role: p.Role, Filename: filename, Offset: -1, Err: err}
	}

	g.obs.RecordRetrieval(category, upload.SourceProxied)
	return &Retrieval{Kind: KindProxied, Policy: p, Filename: filename, Object: obj}, nil
}
