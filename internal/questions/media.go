package questions

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rendis/relay/pkg/schema"
)

// File asks the user to upload a file, constrained by size, extension and
// MIME type. The validated value is the *schema.Attachment itself.
type File struct {
	Base
	maxSize    int64
	extensions map[string]struct{}
	mimeTypes  map[string]struct{}
}

// NewFile creates a file question with no constraints.
func NewFile(text string) *File {
	return &File{
		Base:       Base{text: text},
		extensions: make(map[string]struct{}),
		mimeTypes:  make(map[string]struct{}),
	}
}

// NewImage creates a file question restricted to common image formats.
func NewImage(text string) *File {
	return NewFile(text).
		Extensions("jpg", "jpeg", "png", "gif", "webp").
		MimeTypes("image/jpeg", "image/png", "image/gif", "image/webp")
}

// ErrorText overrides the default validation error message.
func (q *File) ErrorText(text string) *File {
	q.errorText = text
	return q
}

// MaxSize limits the attachment size in bytes. Zero means unlimited.
func (q *File) MaxSize(bytes int64) *File {
	q.maxSize = bytes
	return q
}

// Extensions restricts the allowed file extensions, given without a leading
// dot ("pdf", not ".pdf"). Panics otherwise: a registration-time mistake.
func (q *File) Extensions(exts ...string) *File {
	for _, ext := range exts {
		if strings.HasPrefix(ext, ".") || strings.HasSuffix(ext, ".") {
			panic("file extensions must be given without dots, e.g. \"pdf\"")
		}
		q.extensions[strings.ToLower(ext)] = struct{}{}
	}
	return q
}

// MimeTypes restricts the allowed MIME types.
func (q *File) MimeTypes(types ...string) *File {
	for _, t := range types {
		q.mimeTypes[strings.ToLower(t)] = struct{}{}
	}
	return q
}

// Pre appends pre-validation stages.
func (q *File) Pre(stages ...Stage) *File {
	q.pre = append(q.pre, stages...)
	return q
}

// Post appends post-validation stages.
func (q *File) Post(stages ...Stage) *File {
	q.post = append(q.post, stages...)
	return q
}

// Rich is true: the transport shows an upload affordance for the prompt.
func (q *File) Rich() bool { return true }

// Validate checks the reply's attachment against the configured constraints.
func (q *File) Validate(ctx context.Context, reply schema.Reply, env *Env) (any, error) {
	att := reply.Attachment
	if att == nil {
		return nil, q.failf("Please send a file.")
	}

	value, err := q.runPre(ctx, att, env)
	if err != nil {
		return nil, err
	}
	if a, ok := value.(*schema.Attachment); ok {
		att = a
	}

	if q.maxSize > 0 && att.Size > q.maxSize {
		return nil, q.failf("The provided file is too large (limit %d bytes).", q.maxSize)
	}

	if len(q.extensions) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(att.FileName), "."))
		if _, ok := q.extensions[ext]; !ok {
			return nil, q.failf("The provided file type is not allowed.")
		}
	}

	if len(q.mimeTypes) > 0 {
		if _, ok := q.mimeTypes[strings.ToLower(att.MimeType)]; !ok {
			return nil, q.failf("The provided file type is not allowed.")
		}
	}

	return q.runPost(ctx, att, env)
}

var _ Question = (*File)(nil)
