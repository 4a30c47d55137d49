package upload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"novelistan/internal/pkg/response"
)

const (
	filesKey = "upload.files"
	formKey  = "upload.form"

	defaultMaxFormBytes int64 = 1 << 20
	multipartOverhead   int64 = 64 << 10

	// StatusClientClosedRequest is recorded when the client went away mid-upload.
	StatusClientClosedRequest = 499
)

type Options struct {
	// MaxFormBytes bounds the combined size of all non-file fields.
	MaxFormBytes int64
	// Production hides internal error details from responses.
	Production bool
}

// Ingestor turns a multipart request into committed StoredFiles. A request is
// all-or-nothing: any rejection or failure removes every file written for it.
type Ingestor struct {
	resolver *Resolver
	sink     Sink
	log      *zap.Logger
	obs      Observer
	opts     Options
}

func NewIngestor(resolver *Resolver, sink Sink, log *zap.Logger, obs Observer, opts Options) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	if obs == nil {
		obs = NopObserver{}
	}
	if opts.MaxFormBytes <= 0 {
		opts.MaxFormBytes = defaultMaxFormBytes
	}
	return &Ingestor{resolver: resolver, sink: sink, log: log, obs: obs, opts: opts}
}

// Middleware ingests the file fields named in fields (form field -> role).
// Downstream handlers read the result with Files and Form.
func (in *Ingestor) Middleware(fields map[string]Role) gin.HandlerFunc {
	limit := in.bodyLimit(fields)
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

		files, form, err := in.Ingest(c.Request.Context(), c.Request, fields, c.GetInt64("user_id"))
		if err != nil {
			in.fail(c, err)
			return
		}

		c.Set(filesKey, files)
		c.Set(formKey, form)
		c.Next()
	}
}

// Ingest consumes the multipart body of r. Parts are handled strictly in the
// order they arrive; file bytes are spooled next to their final location and
// only renamed (or pushed to blob storage) once every part was accepted.
func (in *Ingestor) Ingest(ctx context.Context, r *http.Request, fields map[string]Role, ownerID int64) (map[string]*StoredFile, url.Values, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, &ValidationError{Reason: ErrNotMultipart.Error()}
	}

	var (
		pending    []*spooled
		form       = url.Values{}
		formBudget = in.opts.MaxFormBytes
		seen       = map[Role]string{}
	)
	abort := func() {
		for _, s := range pending {
			s.discard()
		}
	}

	for {
		if ctx.Err() != nil {
			abort()
			return nil, nil, ErrClientGone
		}

		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			abort()
			return nil, nil, in.readFailure(ctx, err)
		}

		field := part.FormName()
		if part.FileName() == "" {
			value, err := in.readValue(ctx, part, field, formBudget)
			if err != nil {
				abort()
				return nil, nil, err
			}
			_ = part.Close()
			formBudget -= int64(len(value))
			form.Add(field, value)
			continue
		}

		role, ok := fields[field]
		if !ok {
			abort()
			return nil, nil, &ValidationError{Field: field, Reason: "unexpected file field"}
		}
		if prev, dup := seen[role]; dup {
			abort()
			return nil, nil, &ValidationError{Field: field, Role: role,
				Reason: fmt.Sprintf("only one %s file is accepted (already received %s)", role, prev)}
		}
		seen[role] = field

		s, err := in.receive(ctx, part, field, role)
		if err != nil {
			abort()
			return nil, nil, err
		}
		_ = part.Close()
		pending = append(pending, s)
	}

	if ctx.Err() != nil {
		abort()
		return nil, nil, ErrClientGone
	}

	files, err := in.commit(ctx, pending, ownerID)
	if err != nil {
		return nil, nil, err
	}
	return files, form, nil
}

func (in *Ingestor) receive(ctx context.Context, part *multipart.Part, field string, role Role) (*spooled, error) {
	target, err := in.resolver.Resolve(role)
	if err != nil {
		return nil, err
	}
	p := target.Policy
	original := part.FileName()

	br := bufio.NewReaderSize(part, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF {
		return nil, in.readFailure(ctx, err)
	}

	if len(head) == 0 {
		return nil, &ValidationError{Field: field, Role: role, Reason: ValidateSize(p, 0).Reason}
	}
	sniffed := Sniff(p, head)
	if r := ValidateType(p, original, sniffed); !r.OK {
		return nil, &ValidationError{Field: field, Role: role, Reason: r.Reason}
	}

	s := &spooled{
		field:        field,
		policy:       p,
		originalName: original,
		storedName:   target.NewName(original),
		dir:          target.Directory,
		contentType:  p.ContentTypeFor(original),
	}

	f, err := os.OpenFile(s.spoolPath(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, &StorageIOError{Op: "create", Role: role, Filename: s.storedName, Offset: 0, Err: err}
	}

	src := &readTracker{r: io.LimitReader(br, p.MaxBytes+1)}
	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	switch {
	case copyErr != nil && src.err != nil:
		s.discard()
		return nil, in.readFailure(ctx, src.err)
	case copyErr != nil:
		s.discard()
		return nil, &StorageIOError{Op: "write", Role: role, Filename: s.storedName, Offset: n, Err: copyErr}
	case closeErr != nil:
		s.discard()
		return nil, &StorageIOError{Op: "close", Role: role, Filename: s.storedName, Offset: n, Err: closeErr}
	}

	if r := ValidateSize(p, n); !r.OK {
		s.discard()
		return nil, &ValidationError{Field: field, Role: role, Reason: r.Reason}
	}
	s.size = n
	return s, nil
}

func (in *Ingestor) commit(ctx context.Context, pending []*spooled, ownerID int64) (map[string]*StoredFile, error) {
	files := make(map[string]*StoredFile, len(pending))
	committed := make([]*StoredFile, 0, len(pending))

	for i, s := range pending {
		path, publicURL, err := in.sink.Commit(ctx, s)
		if err != nil {
			for _, rest := range pending[i:] {
				rest.discard()
			}
			in.Discard(context.WithoutCancel(ctx), committed...)
			if ctx.Err() != nil {
				return nil, ErrClientGone
			}
			return nil, &StorageIOError{Op: "commit", Role: s.policy.Role, Filename: s.storedName, Offset: s.size, Err: err}
		}

		f := &StoredFile{
			ID:           uuid.NewString(),
			OwnerID:      ownerID,
			Field:        s.field,
			Role:         s.policy.Role,
			OriginalName: s.originalName,
			StoredName:   s.storedName,
			Path:         path,
			URL:          publicURL,
			SizeBytes:    s.size,
			ContentType:  s.contentType,
			CreatedAt:    time.Now().UTC(),
		}
		committed = append(committed, f)
		files[s.field] = f
	}

	for _, f := range committed {
		in.obs.RecordUpload(f.Role, OutcomeAccepted, f.SizeBytes)
		in.log.Info("upload stored",
			zap.String("field", f.Field),
			zap.String("role", string(f.Role)),
			zap.String("stored_name", f.StoredName),
			zap.Int64("size", f.SizeBytes),
		)
	}
	return files, nil
}

// Discard removes files that were committed but are no longer wanted, e.g.
// because the downstream handler failed to persist the record referencing them.
func (in *Ingestor) Discard(ctx context.Context, files ...*StoredFile) {
	for _, f := range files {
		if f == nil {
			continue
		}
		if err := in.sink.Remove(ctx, f); err != nil {
			in.log.Warn("failed to remove stored file",
				zap.String("stored_name", f.StoredName),
				zap.String("path", f.Path),
				zap.Error(err),
			)
		}
	}
}

func (in *Ingestor) readValue(ctx context.Context, part *multipart.Part, field string, budget int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, budget+1))
	if err != nil {
		return "", in.readFailure(ctx, err)
	}
	if int64(len(data)) > budget {
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("form fields exceed %d bytes", in.opts.MaxFormBytes)}
	}
	return string(data), nil
}

func (in *Ingestor) readFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrClientGone
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &ValidationError{Reason: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
	}
	return &ValidationError{Reason: "malformed multipart body"}
}

func (in *Ingestor) fail(c *gin.Context, err error) {
	var verr *ValidationError
	var serr *StorageIOError

	switch {
	case errors.Is(err, ErrClientGone):
		in.obs.RecordUpload("", OutcomeAborted, 0)
		in.log.Warn("upload aborted",
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
		)
		c.AbortWithStatus(StatusClientClosedRequest)

	case errors.As(err, &verr):
		in.obs.RecordUpload(verr.Role, OutcomeRejected, 0)
		in.log.Info("upload rejected",
			zap.String("field", verr.Field),
			zap.String("role", string(verr.Role)),
			zap.String("reason", verr.Reason),
		)
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, verr.Error(),
			gin.H{"field": verr.Field, "role": verr.Role})
		c.Abort()

	case errors.As(err, &serr):
		in.obs.RecordUpload(serr.Role, OutcomeFailed, 0)
		in.log.Error("upload storage failure",
			zap.String("op", serr.Op),
			zap.String("role", string(serr.Role)),
			zap.String("filename", serr.Filename),
			zap.Int64("offset", serr.Offset),
			zap.Error(serr.Err),
		)
		response.Internal(c, response.CodeStorage, "failed to store upload", err, in.opts.Production)
		c.Abort()

	default:
		in.log.Error("upload failed", zap.Error(err))
		response.Internal(c, response.CodeInternal, "upload failed", err, in.opts.Production)
		c.Abort()
	}
}

func (in *Ingestor) bodyLimit(fields map[string]Role) int64 {
	limit := in.opts.MaxFormBytes + multipartOverhead
	counted := map[Role]bool{}
	for _, role := range fields {
		if counted[role] {
			continue
		}
		counted[role] = true
		if p, ok := in.resolver.policies[role]; ok {
			limit += p.MaxBytes
		}
	}
	return limit
}

// Files returns the descriptors stored by Middleware, keyed by form field.
func Files(c *gin.Context) map[string]*StoredFile {
	if v, ok := c.Get(filesKey); ok {
		if files, ok := v.(map[string]*StoredFile); ok {
			return files
		}
	}
	return map[string]*StoredFile{}
}

// Form returns the non-file fields read by Middleware.
func Form(c *gin.Context) url.Values {
	if v, ok := c.Get(formKey); ok {
		if form, ok := v.(url.Values); ok {
			return form
		}
	}
	return url.Values{}
}

type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
