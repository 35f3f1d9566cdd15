package crud

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"gorm.io/gorm/schema"
)

// modelNameRe is the only character set accepted in a client-supplied model
// name. Anything outside it (slashes, dots beyond namespace separators,
// traversal sequences) resolves to nothing.
var modelNameRe = regexp.MustCompile(`^[A-Za-z0-9_.\\]+$`)

// NormalizeName validates a client-supplied model name and maps backslash
// namespace separators to the canonical dotted form. Invalid names yield
// ErrNotFound, never a partial result.
func NormalizeName(name string) (string, error) {
	if name == "" || !modelNameRe.MatchString(name) {
		return "", ErrNotFound
	}
	return strings.ReplaceAll(name, `\`, "."), nil
}

// Config is the registry's read-only configuration.
type Config struct {
	// AllowedNamespaces are prefixes the fully-qualified Go type name of a
	// model must start with before it may be exposed.
	AllowedNamespaces []string
	// ModelPaths are directories scanned by Discover for candidate model
	// definition files.
	ModelPaths []string
}

type entry struct {
	model Model
	typ   reflect.Type
	fq    string
	rules map[Action]map[string]interface{}
}

// RegisterOption configures one model registration.
type RegisterOption func(*entry)

// WithRules declares validation rules for one action on the model,
// in go-playground rule syntax keyed by column name.
func WithRules(action Action, rules map[string]interface{}) RegisterOption {
	return func(e *entry) {
		e.rules[action] = rules
	}
}

// Registry maps canonical model names to registered, verified model types.
// It is populated once at startup; request handling only reads it. Dynamic
// lookup from string input never loads code: a name either matches a
// registered entry or resolves to nothing.
type Registry struct {
	cfg     Config
	entries map[string]*entry
	cache   *sync.Map
	namer   schema.Namer
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:     cfg,
		entries: map[string]*entry{},
		cache:   &sync.Map{},
		namer:   schema.NamingStrategy{},
	}
}

// Register adds one model to the registry. Registration fails loudly on
// startup misconfiguration: bad canonical name, non-struct type, namespace
// outside the allow-list, or a type gorm cannot describe.
func (r *Registry) Register(model Model, opts ...RegisterOption) error {
	name, err := NormalizeName(model.CrudModelName())
	if err != nil {
		return fmt.Errorf("register: invalid model name %q", model.CrudModelName())
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("register: duplicate model %q", name)
	}

	typ := reflect.TypeOf(model)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return fmt.Errorf("register: model %q must be a struct type, got %s", name, typ.Kind())
	}

	fq := typ.PkgPath() + "." + typ.Name()
	if !r.namespaceAllowed(fq) {
		return fmt.Errorf("register: model %q (%s) outside allowed namespaces", name, fq)
	}

	e := &entry{
		model: model,
		typ:   typ,
		fq:    fq,
		rules: map[Action]map[string]interface{}{},
	}
	for _, opt := range opts {
		opt(e)
	}

	// Storage-backed check: the type must parse as a gorm schema.
	if _, err := schema.Parse(model, r.cache, r.namer); err != nil {
		return fmt.Errorf("register: model %q is not a storage-backed type: %w", name, err)
	}

	r.entries[name] = e
	return nil
}

// Resolve maps a client-supplied name to a fresh descriptor. Every failure
// mode collapses to ErrNotFound so that callers cannot probe which check
// rejected the name.
func (r *Registry) Resolve(name string) (*Descriptor, error) {
	canonical, err := NormalizeName(name)
	if err != nil {
		return nil, ErrNotFound
	}
	e, ok := r.entries[canonical]
	if !ok {
		return nil, ErrNotFound
	}
	if !r.namespaceAllowed(e.fq) {
		return nil, ErrNotFound
	}
	d, err := r.describe(canonical, e)
	if err != nil {
		return nil, ErrNotFound
	}
	return d, nil
}

// Rules returns the declared validation rules for one action, or nil.
func (r *Registry) Rules(name string, action Action) map[string]interface{} {
	canonical, err := NormalizeName(name)
	if err != nil {
		return nil
	}
	e, ok := r.entries[canonical]
	if !ok {
		return nil
	}
	return e.rules[action]
}

// Names returns the canonical names of all registered models.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}

func (r *Registry) namespaceAllowed(fq string) bool {
	for _, prefix := range r.cfg.AllowedNamespaces {
		if strings.HasPrefix(fq, prefix) {
			return true
		}
	}
	return false
}

func (r *Registry) describe(name string, e *entry) (*Descriptor, error) {
	sch, err := schema.Parse(e.model, r.cache, r.namer)
	if err != nil {
		return nil, err
	}
	if sch.PrioritizedPrimaryField == nil {
		return nil, fmt.Errorf("model %q has no primary key", name)
	}

	d := &Descriptor{
		Name:       name,
		Table:      sch.Table,
		Columns:    append([]string(nil), sch.DBNames...),
		PrimaryKey: sch.PrioritizedPrimaryField.DBName,
		Relations:  map[string]Relation{},
		typ:        e.typ,
		sch:        sch,
		fq:         e.fq,
	}

	for _, rel := range sch.Relationships.Relations {
		if rel.FieldSchema == nil {
			continue
		}
		target := ""
		if m, ok := reflect.New(rel.FieldSchema.ModelType).Interface().(Model); ok {
			target = m.CrudModelName()
		}
		reqName := r.namer.ColumnName("", rel.Name)
		d.Relations[reqName] = Relation{
			Name:       reqName,
			FieldName:  rel.Name,
			TargetName: target,
			ref:        rel,
		}
	}

	return d, nil
}
