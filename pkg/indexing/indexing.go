package indexing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/domain"
)

// UniqueSuffix is appended to a field name to name its unique index.
const UniqueSuffix = "_unique"

// Spec declares one secondary index. Fields is the short form for ascending
// keys; Keys takes precedence when set. Options pass through to the
// collection, with "name" and "unique" lifted into the index model.
type Spec struct {
	Fields  []string
	Keys    []domain.IndexKey
	Options domain.Document
}

// Key returns the normalized key list of the spec.
func (s Spec) Key() []domain.IndexKey {
	if len(s.Keys) > 0 {
		return s.Keys
	}
	keys := make([]domain.IndexKey, len(s.Fields))
	for i, field := range s.Fields {
		keys[i] = domain.IndexKey{Field: field, Order: 1}
	}
	return keys
}

// Name returns the explicit name option, else the underscore-joined field
// names.
func (s Spec) Name() string {
	if name, ok := s.Options["name"].(string); ok && name != "" {
		return name
	}
	keys := s.Key()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Field
	}
	return strings.Join(parts, "_")
}

// Model converts the spec into the index model handed to a collection.
func (s Spec) Model() domain.IndexModel {
	model := domain.IndexModel{Keys: s.Key(), Name: s.Name()}
	for k, v := range s.Options {
		switch k {
		case "name":
		case "unique":
			model.Unique, _ = v.(bool)
		default:
			if model.Options == nil {
				model.Options = domain.Document{}
			}
			model.Options[k] = v
		}
	}
	return model
}

// UniqueSpec is the single-field unique index derived from a unique field.
func UniqueSpec(field string) Spec {
	return Spec{
		Fields:  []string{field},
		Options: domain.Document{"name": field + UniqueSuffix, "unique": true},
	}
}

// Result reports what a reconciliation changed.
type Result struct {
	Created []string
	Dropped []string
	Skipped []string
}

// Synchronizer makes the secondary indexes of a collection match a declared set
type Synchronizer struct {
	logger *zap.Logger
}

// NewSynchronizer creates a synchronizer. A nil logger discards output.
func NewSynchronizer(logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{logger: logger}
}

// Sync creates the missing unique-field and declared indexes and drops every
// other index except the identity index. An index option the hosting tier
// rejects is logged and skipped; any other creation failure aborts.
func (s *Synchronizer) Sync(ctx context.Context, coll domain.Collection, uniqueFields []string, declared []Spec) (Result, error) {
	var result Result

	existing, err := coll.ListIndexes(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list indexes of %s: %w", coll.Name(), err)
	}
	present := make(map[string]bool, len(existing))
	for _, info := range existing {
		present[info.Name] = true
	}

	specs := make([]Spec, 0, len(uniqueFields)+len(declared))
	for _, field := range uniqueFields {
		specs = append(specs, UniqueSpec(field))
	}
	specs = append(specs, declared...)

	wanted := make(map[string]bool, len(specs))
	for _, spec := range specs {
		model := spec.Model()
		if len(model.Keys) == 0 {
			return result, fmt.Errorf("index %q on %s declares no fields", model.Name, coll.Name())
		}
		wanted[model.Name] = true
		if present[model.Name] {
			continue
		}

		name, err := coll.CreateIndex(ctx, model)
		if err != nil {
			if IsTierUnsupported(err) {
				s.logger.Warn("index option not supported by the database tier, index skipped",
					zap.String("collection", coll.Name()),
					zap.String("index", model.Name),
					zap.Error(err))
				result.Skipped = append(result.Skipped, model.Name)
				continue
			}
			return result, fmt.Errorf("failed to create index %s on %s: %w", model.Name, coll.Name(), err)
		}
		present[name] = true
		wanted[name] = true
		result.Created = append(result.Created, name)
		s.logger.Debug("index created", zap.String("collection", coll.Name()), zap.String("index", name))
	}

	stale := make([]string, 0)
	for name := range present {
		if name != domain.DefaultIndexName && !wanted[name] {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)
	for _, name := range stale {
		if err := coll.DropIndex(ctx, name); err != nil {
			return result, fmt.Errorf("failed to drop index %s on %s: %w", name, coll.Name(), err)
		}
		result.Dropped = append(result.Dropped, name)
		s.logger.Debug("index dropped", zap.String("collection", coll.Name()), zap.String("index", name))
	}

	return result, nil
}

// IsTierUnsupported reports whether an index creation failed because the
// hosting tier does not support one of its options.
func IsTierUnsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index option") && strings.Contains(msg, "atlas tier")
}
