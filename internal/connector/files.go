package connector

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rendis/relay/pkg/schema"
)

// QueryFile is a query discovered in an action folder. File names follow
// "<query>.<connector>.sql" for static queries and
// "<query>.<connector>.sql.tmpl" for query templates rendered against the
// invocation context before execution.
type QueryFile struct {
	// Name is the query name, the first filename segment.
	Name string
	// Connector is the target connector name, the second filename segment.
	Connector string
	// File is the filename the query was loaded from.
	File string
	// Source is the raw file contents.
	Source string
	// IsTemplate marks ".sql.tmpl" files.
	IsTemplate bool
}

// DiscoverQueryFiles scans an action folder for query files. Files whose
// connector segment matches no registered connector are dropped with a
// warning rather than failing registration, matching the tolerance the rest
// of the resolver shows for unmatched bindings.
func DiscoverQueryFiles(folder string, connectors *Registry, logger *slog.Logger) ([]QueryFile, error) {
	if folder == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, schema.NewErrorf(schema.ErrCodeRegistration,
			"read action folder %q: %s", folder, err.Error()).WithCause(err)
	}

	var files []QueryFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		qf, ok := parseQueryFileName(entry.Name())
		if !ok {
			continue
		}
		if !connectors.Has(qf.Connector) {
			logger.Warn("query file does not match any registered connector, it will be ignored",
				slog.String("file", entry.Name()),
				slog.String("connector", qf.Connector),
			)
			continue
		}

		src, err := os.ReadFile(filepath.Join(folder, entry.Name()))
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeRegistration,
				"read query file %q: %s", entry.Name(), err.Error()).WithCause(err)
		}
		qf.Source = string(src)
		files = append(files, qf)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].File < files[j].File })
	return files, nil
}

// parseQueryFileName splits "<query>.<connector>.sql[.tmpl]" into its parts.
func parseQueryFileName(name string) (QueryFile, bool) {
	isTemplate := false
	base := name
	if strings.HasSuffix(base, ".sql.tmpl") {
		isTemplate = true
		base = strings.TrimSuffix(base, ".sql.tmpl")
	} else if strings.HasSuffix(base, ".sql") {
		base = strings.TrimSuffix(base, ".sql")
	} else {
		return QueryFile{}, false
	}

	idx := strings.LastIndex(base, ".")
	if idx <= 0 || idx == len(base)-1 {
		return QueryFile{}, false
	}

	return QueryFile{
		Name:       base[:idx],
		Connector:  base[idx+1:],
		File:       name,
		IsTemplate: isTemplate,
	}, true
}
