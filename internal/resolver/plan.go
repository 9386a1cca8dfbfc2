package resolver

import (
	"fmt"
	"strings"

	"github.com/rendis/relay/internal/actions"
	"github.com/rendis/relay/internal/connector"
	"github.com/rendis/relay/internal/questions"
	"github.com/rendis/relay/internal/templates"
	"github.com/rendis/relay/pkg/schema"
)

// Source says where a parameter's value comes from at invocation time.
type Source int

const (
	// SourceQuestion values are gathered interactively before the body runs.
	SourceQuestion Source = iota
	// SourceUser is the invoking (or targeted) user.
	SourceUser
	// SourceUsers is the audience of a scheduled fan-out invocation.
	SourceUsers
	// SourceLogger is a logger pre-bound with the invocation identifiers.
	SourceLogger
	// SourceFolder is the action's folder path.
	SourceFolder
	// SourceUpdate is the raw inbound message that triggered the invocation.
	SourceUpdate
	// SourceTemplates is the action's whole template set.
	SourceTemplates
	// SourceTemplate is one named template, rendered with the invocation scope.
	SourceTemplate
	// SourceData is the result of executing one of the action's query files.
	SourceData
	// SourceUnbound is a parameter matching no reserved name and carrying no
	// question. It resolves to nil so bodies stay callable across framework
	// versions that add parameter names.
	SourceUnbound
)

func (s Source) String() string {
	switch s {
	case SourceQuestion:
		return "question"
	case SourceUser:
		return "user"
	case SourceUsers:
		return "users"
	case SourceLogger:
		return "logger"
	case SourceFolder:
		return "folder"
	case SourceUpdate:
		return "update"
	case SourceTemplates:
		return "templates"
	case SourceTemplate:
		return "template"
	case SourceData:
		return "data"
	case SourceUnbound:
		return "unbound"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Binding ties one declared parameter to its source and the artifacts needed
// to resolve it.
type Binding struct {
	Param    string
	Source   Source
	Question questions.Question
	Query    connector.QueryFile
	Template string
	// Transform optionally reshapes a resolved data value.
	Transform string
}

// Plan is the classification of an action's parameters, computed once at
// registration so every binding error surfaces before the first invocation.
type Plan struct {
	Action   *actions.Spec
	Bindings []Binding
}

// Questions returns the question-bound bindings in declaration order.
func (p *Plan) Questions() []Binding {
	out := make([]Binding, 0, len(p.Bindings))
	for _, b := range p.Bindings {
		if b.Source == SourceQuestion {
			out = append(out, b)
		}
	}
	return out
}

// Unbound returns the names of parameters that matched nothing, for a
// registration-time diagnostic.
func (p *Plan) Unbound() []string {
	var out []string
	for _, b := range p.Bindings {
		if b.Source == SourceUnbound {
			out = append(out, b.Param)
		}
	}
	return out
}

// BuildPlan classifies every declared parameter of the action by name.
// Reserved names resolve from the invocation context; "template"/"data"
// and their suffixed forms bind to the action's folder artifacts; anything
// else binds to its question, or stays unbound (resolving to nil) when no
// question is declared. Referencing a missing or ambiguous artifact is a
// registration error; an unbound name is not.
func BuildPlan(spec *actions.Spec) (*Plan, error) {
	plan := &Plan{Action: spec, Bindings: make([]Binding, 0, len(spec.Params))}
	bound := make(map[string]struct{}, len(spec.Params))

	for _, name := range spec.Params {
		if _, dup := bound[name]; dup {
			return nil, regErr(spec, "parameter %q declared twice", name)
		}
		bound[name] = struct{}{}

		b := Binding{Param: name}
		switch {
		case name == "user":
			b.Source = SourceUser
		case name == "users":
			b.Source = SourceUsers
		case name == "logger":
			b.Source = SourceLogger
		case name == "folder":
			b.Source = SourceFolder
		case name == "update":
			b.Source = SourceUpdate
		case name == "templates":
			b.Source = SourceTemplates
		case name == "template":
			tpl, err := soleTemplate(spec)
			if err != nil {
				return nil, err
			}
			b.Source, b.Template = SourceTemplate, tpl
		case strings.HasPrefix(name, "template_"):
			ref := strings.TrimPrefix(name, "template_")
			tpl, ok := lookupTemplate(spec, ref)
			if !ok {
				return nil, regErr(spec, "parameter %q references unknown template %q", name, ref)
			}
			b.Source, b.Template = SourceTemplate, tpl
		case name == "data":
			qf, err := soleQuery(spec)
			if err != nil {
				return nil, err
			}
			b.Source, b.Query = SourceData, qf
		case strings.HasPrefix(name, "data_"):
			qf, ok := findQuery(spec, strings.TrimPrefix(name, "data_"))
			if !ok {
				return nil, regErr(spec, "parameter %q references unknown query %q",
					name, strings.TrimPrefix(name, "data_"))
			}
			b.Source, b.Query = SourceData, qf
		default:
			if q, ok := spec.Questions[name]; ok {
				b.Source, b.Question = SourceQuestion, q
			} else {
				b.Source = SourceUnbound
			}
		}

		if b.Source == SourceData && spec.Transforms != nil {
			b.Transform = spec.Transforms[name]
		}
		plan.Bindings = append(plan.Bindings, b)
	}

	for name := range spec.Questions {
		if _, ok := bound[name]; !ok {
			return nil, regErr(spec, "question declared for unknown parameter %q", name)
		}
	}
	for name := range spec.Transforms {
		if _, ok := bound[name]; !ok {
			return nil, regErr(spec, "transform declared for unknown parameter %q", name)
		}
	}

	return plan, nil
}

// soleTemplate returns the action's only template. A bare "template"
// parameter is ambiguous with several templates and unresolvable with none.
func soleTemplate(spec *actions.Spec) (string, error) {
	if spec.Templates == nil || len(spec.Templates.Names()) == 0 {
		return "", regErr(spec, `parameter "template" bound but action has no templates`)
	}
	names := spec.Templates.Names()
	if len(names) > 1 {
		return "", regErr(spec,
			`parameter "template" is ambiguous: action has %d templates, use template_<name>`,
			len(names))
	}
	return names[0], nil
}

// soleQuery returns the action's only query file, with the same zero/many
// treatment as soleTemplate.
func soleQuery(spec *actions.Spec) (connector.QueryFile, error) {
	switch len(spec.Queries) {
	case 0:
		return connector.QueryFile{}, regErr(spec,
			`parameter "data" bound but action has no query files`)
	case 1:
		return spec.Queries[0], nil
	default:
		return connector.QueryFile{}, regErr(spec,
			`parameter "data" is ambiguous: action has %d query files, use data_<name>`,
			len(spec.Queries))
	}
}

// lookupTemplate accepts either a full template filename or a bare name
// without the message extension.
func lookupTemplate(spec *actions.Spec, ref string) (string, bool) {
	if spec.Templates == nil {
		return "", false
	}
	if spec.Templates.Has(ref) {
		return ref, true
	}
	if full := ref + templates.MessageExt; spec.Templates.Has(full) {
		return full, true
	}
	return "", false
}

func findQuery(spec *actions.Spec, name string) (connector.QueryFile, bool) {
	for _, qf := range spec.Queries {
		if qf.Name == name {
			return qf, true
		}
	}
	return connector.QueryFile{}, false
}

func regErr(spec *actions.Spec, format string, args ...any) error {
	return schema.NewErrorf(schema.ErrCodeRegistration, format, args...).
		WithAction(spec.Name)
}
