package templates

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/rendis/relay/pkg/schema"
)

// MessageExt is the filename suffix identifying message templates inside an
// action folder.
const MessageExt = ".md.tmpl"

// Set holds the parsed message templates of one action folder. Rendering is
// stateless: a pure function of (template, context).
type Set struct {
	folder string
	tmpl   *template.Template
	names  []string
}

// Load parses every message template in the action folder. A missing or empty
// folder yields an empty Set, not an error: actions without templates are
// legal.
func Load(folder string) (*Set, error) {
	s := &Set{folder: folder, tmpl: template.New("relay")}
	if folder == "" {
		return s, nil
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, schema.NewErrorf(schema.ErrCodeTemplate,
			"read template folder %q: %s", folder, err.Error()).WithCause(err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), MessageExt) {
			continue
		}
		src, err := os.ReadFile(filepath.Join(folder, entry.Name()))
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeTemplate,
				"read template %q: %s", entry.Name(), err.Error()).WithCause(err)
		}
		if _, err := s.tmpl.New(entry.Name()).Parse(string(src)); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeTemplate,
				"parse template %q: %s", entry.Name(), err.Error()).WithCause(err)
		}
		s.names = append(s.names, entry.Name())
	}
	sort.Strings(s.names)
	return s, nil
}

// NewSet builds a Set from in-memory sources keyed by template name.
// Used by tests and programmatically registered actions.
func NewSet(sources map[string]string) (*Set, error) {
	s := &Set{tmpl: template.New("relay")}
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := s.tmpl.New(name).Parse(sources[name]); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeTemplate,
				"parse template %q: %s", name, err.Error()).WithCause(err)
		}
		s.names = append(s.names, name)
	}
	return s, nil
}

// Names returns the template names in the set, sorted.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Has reports whether the named template exists.
func (s *Set) Has(name string) bool {
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

// Render executes the named template against the context mapping.
func (s *Set) Render(name string, ctx map[string]any) (string, error) {
	if !s.Has(name) {
		return "", schema.NewErrorf(schema.ErrCodeNotFound, "template %q not found", name).
			WithDetails(map[string]any{"available": s.names})
	}

	var sb strings.Builder
	if err := s.tmpl.ExecuteTemplate(&sb, name, ctx); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeTemplate,
			"render template %q: %s", name, err.Error()).WithCause(err)
	}
	return sb.String(), nil
}

// RenderString parses and executes a one-off template source against the
// context mapping. Query templates use this: the rendered text is then
// handed to a connector for execution.
func RenderString(src string, ctx map[string]any) (string, error) {
	t, err := template.New("inline").Parse(src)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeTemplate,
			"parse inline template: %s", err.Error()).WithCause(err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, ctx); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeTemplate,
			"render inline template: %s", err.Error()).WithCause(err)
	}
	return sb.String(), nil
}
