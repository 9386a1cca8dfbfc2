package scheduler

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/rendis/relay/pkg/schema"
)

// Job is one scheduled invocation definition.
type Job struct {
	// ID uniquely identifies the job.
	ID string `yaml:"id" json:"id"`
	// Action is the registered action to invoke.
	Action string `yaml:"action" json:"action"`
	// Cron is a standard five-field cron expression.
	Cron string `yaml:"cron" json:"cron"`
	// FanOut invokes the action once per audience member instead of once
	// with the audience as a whole.
	FanOut bool `yaml:"fan_out" json:"fan_out"`
	// Args pre-supplies question parameters.
	Args map[string]any `yaml:"args" json:"args"`
	// Audience restricts the target users by chat identity. Empty means
	// every user in the directory.
	Audience []string `yaml:"audience" json:"audience"`
	// Disabled keeps the job loaded but never due.
	Disabled bool `yaml:"disabled" json:"disabled"`
}

type jobsFile struct {
	Jobs []Job `yaml:"jobs"`
}

// jobsSchema validates the jobs file shape before it is decoded.
const jobsSchema = `{
  "type": "object",
  "required": ["jobs"],
  "properties": {
    "jobs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "action", "cron"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "action": {"type": "string", "minLength": 1},
          "cron": {"type": "string", "minLength": 1},
          "fan_out": {"type": "boolean"},
          "args": {"type": "object"},
          "audience": {"type": "array", "items": {"type": "string"}},
          "disabled": {"type": "boolean"}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// LoadJobs reads and validates a YAML jobs file.
func LoadJobs(path string) ([]Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeRegistration,
			"read jobs file %q: %s", path, err.Error()).WithCause(err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeRegistration,
			"parse jobs file %q: %s", path, err.Error()).WithCause(err)
	}

	if err := validateJobsDoc(doc); err != nil {
		return nil, err
	}

	var file jobsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeRegistration,
			"decode jobs file %q: %s", path, err.Error()).WithCause(err)
	}

	seen := make(map[string]struct{}, len(file.Jobs))
	for _, job := range file.Jobs {
		if _, dup := seen[job.ID]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeRegistration,
				"duplicate job id %q in %q", job.ID, path)
		}
		seen[job.ID] = struct{}{}
	}
	return file.Jobs, nil
}

// validateJobsDoc runs the decoded document through the jobs schema. The YAML
// value is round-tripped through JSON so the validator sees canonical types.
func validateJobsDoc(doc any) error {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeRegistration, err.Error()).WithCause(err)
	}
	canonical, err := jsonschema.UnmarshalJSON(strings.NewReader(string(encoded)))
	if err != nil {
		return schema.NewError(schema.ErrCodeRegistration, err.Error()).WithCause(err)
	}

	compiler := jsonschema.NewCompiler()
	sch, err := jsonschema.UnmarshalJSON(strings.NewReader(jobsSchema))
	if err != nil {
		return schema.NewError(schema.ErrCodeRegistration, err.Error()).WithCause(err)
	}
	if err := compiler.AddResource("jobs.json", sch); err != nil {
		return schema.NewError(schema.ErrCodeRegistration, err.Error()).WithCause(err)
	}
	compiled, err := compiler.Compile("jobs.json")
	if err != nil {
		return schema.NewError(schema.ErrCodeRegistration, err.Error()).WithCause(err)
	}

	if err := compiled.Validate(canonical); err != nil {
		return schema.NewErrorf(schema.ErrCodeRegistration,
			"jobs file is invalid: %s", err.Error()).WithCause(err)
	}
	return nil
}
