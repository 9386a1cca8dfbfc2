package pagination

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rendis/relay/internal/templates"
	"github.com/rendis/relay/pkg/schema"
)

// DefaultSessionCapacity bounds how many paginated views stay navigable at
// once. Older sessions are evicted least-recently-used.
const DefaultSessionCapacity = 256

// Request describes a paginated result an action body wants to send.
type Request struct {
	// Items is the full result set, split into pages of PageSize.
	Items []any
	// Templates renders the pages.
	Templates *templates.Set
	// PageTemplate renders each item page. Its scope gets "items", "page",
	// "page_count", "total" and everything in Context.
	PageTemplate string
	// FirstPageTemplate optionally renders a cover shown before page one.
	FirstPageTemplate string
	// PageSize overrides the paginator default when positive.
	PageSize int
	// Context is merged into every page's rendering scope.
	Context map[string]any
}

type session struct {
	req       Request
	pageSize  int
	pageCount int
}

// Paginator keeps the live paginated sessions and renders pages on demand.
// Navigation tokens are "<session>#<page>"; a token for an evicted session
// yields NOT_FOUND so the caller can tell the user the view expired.
type Paginator struct {
	sessions *lru.Cache[string, *session]
	pageSize int
	logger   *slog.Logger
}

// New creates a paginator. Zero capacity and page size fall back to defaults.
func New(capacity, pageSize int, logger *slog.Logger) (*Paginator, error) {
	if capacity <= 0 {
		capacity = DefaultSessionCapacity
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, *session](capacity)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeExecution, err.Error()).WithCause(err)
	}
	return &Paginator{sessions: cache, pageSize: pageSize, logger: logger}, nil
}

// Open registers a session and renders its initial view: the cover when a
// first-page template is configured, otherwise page one.
func (p *Paginator) Open(req Request) (schema.OutboundMessage, error) {
	if req.Templates == nil || req.PageTemplate == "" {
		return schema.OutboundMessage{}, schema.NewError(schema.ErrCodeTemplate,
			"pagination requires a page template")
	}

	size := req.PageSize
	if size <= 0 {
		size = p.pageSize
	}
	count := (len(req.Items) + size - 1) / size
	if count == 0 {
		count = 1
	}

	s := &session{req: req, pageSize: size, pageCount: count}
	id := uuid.NewString()
	p.sessions.Add(id, s)
	p.logger.Debug("pagination session opened",
		slog.String("session", id),
		slog.Int("items", len(req.Items)),
		slog.Int("pages", count))

	if req.FirstPageTemplate != "" {
		return p.renderCover(id, s)
	}
	return p.renderPage(id, s, 1)
}

// Navigate renders the page addressed by a "<session>#<page>" token. The page
// number is clamped into the valid range rather than rejected.
func (p *Paginator) Navigate(token string) (schema.OutboundMessage, error) {
	id, page, err := ParseToken(token)
	if err != nil {
		return schema.OutboundMessage{}, err
	}

	s, ok := p.sessions.Get(id)
	if !ok {
		return schema.OutboundMessage{}, schema.NewErrorf(schema.ErrCodeNotFound,
			"pagination session %q expired", id)
	}

	if page < 1 {
		page = 1
	}
	if page > s.pageCount {
		page = s.pageCount
	}
	return p.renderPage(id, s, page)
}

// Token builds the navigation token for a page of a session.
func Token(sessionID string, page int) string {
	return fmt.Sprintf("%s#%d", sessionID, page)
}

// ParseToken splits a navigation token into session and page.
func ParseToken(token string) (string, int, error) {
	idx := strings.LastIndex(token, "#")
	if idx <= 0 {
		return "", 0, schema.NewErrorf(schema.ErrCodeValidation,
			"malformed navigation token %q", token)
	}
	page, err := strconv.Atoi(token[idx+1:])
	if err != nil {
		return "", 0, schema.NewErrorf(schema.ErrCodeValidation,
			"malformed navigation token %q", token).WithCause(err)
	}
	return token[:idx], page, nil
}

func (p *Paginator) renderCover(id string, s *session) (schema.OutboundMessage, error) {
	text, err := s.req.Templates.Render(s.req.FirstPageTemplate, p.scope(s, nil, 0))
	if err != nil {
		return schema.OutboundMessage{}, err
	}
	msg := schema.TextMessage(text)
	msg.Nav = &schema.PageNav{SessionID: id, Page: 0, PageCount: s.pageCount}
	return msg, nil
}

func (p *Paginator) renderPage(id string, s *session, page int) (schema.OutboundMessage, error) {
	lo := (page - 1) * s.pageSize
	hi := lo + s.pageSize
	if lo > len(s.req.Items) {
		lo = len(s.req.Items)
	}
	if hi > len(s.req.Items) {
		hi = len(s.req.Items)
	}

	text, err := s.req.Templates.Render(s.req.PageTemplate, p.scope(s, s.req.Items[lo:hi], page))
	if err != nil {
		return schema.OutboundMessage{}, err
	}
	msg := schema.TextMessage(text)
	msg.Nav = &schema.PageNav{SessionID: id, Page: page, PageCount: s.pageCount}
	return msg, nil
}

func (p *Paginator) scope(s *session, items []any, page int) map[string]any {
	scope := make(map[string]any, len(s.req.Context)+4)
	for k, v := range s.req.Context {
		scope[k] = v
	}
	scope["items"] = items
	scope["page"] = page
	scope["page_count"] = s.pageCount
	scope["total"] = len(s.req.Items)
	return scope
}
