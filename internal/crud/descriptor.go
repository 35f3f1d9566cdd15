package crud

import (
	"reflect"

	"gorm.io/gorm/schema"
)

// Model marks a struct as eligible for CRUD exposure. The returned name is
// the canonical dotted identifier clients use, e.g. "models.Post".
type Model interface {
	CrudModelName() string
}

// Relation describes one declared relation of a model. TargetName is empty
// when the related type has not opted in to CRUD exposure, which makes the
// relation unusable for filtering or eager loading.
type Relation struct {
	Name       string // request name, e.g. "comments"
	FieldName  string // Go struct field, e.g. "Comments"
	TargetName string // canonical name of the related model
	ref        *schema.Relationship
}

// Descriptor is the per-request view of one exposable model: canonical
// name, storage table, ordered column set and declared relations.
type Descriptor struct {
	Name       string
	Table      string
	Columns    []string
	PrimaryKey string
	Relations  map[string]Relation

	typ reflect.Type
	sch *schema.Schema
	fq  string
}

// FullyQualifiedName is the Go type identity behind the descriptor,
// checked against the configured namespace allow-list.
func (d *Descriptor) FullyQualifiedName() string { return d.fq }

// New returns a *T for the descriptor's model type.
func (d *Descriptor) New() interface{} {
	return reflect.New(d.typ).Interface()
}

// NewSlice returns a *[]T for the descriptor's model type.
func (d *Descriptor) NewSlice() interface{} {
	return reflect.New(reflect.SliceOf(d.typ)).Interface()
}

// HasColumn reports whether col is a real storage column of the model.
func (d *Descriptor) HasColumn(col string) bool {
	_, ok := d.sch.FieldsByDBName[col]
	return ok
}
