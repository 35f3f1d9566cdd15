package crud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/doonfrs/trinacrud/internal/authz"
	"github.com/doonfrs/trinacrud/internal/logging"
	"github.com/doonfrs/trinacrud/internal/models"
	"github.com/doonfrs/trinacrud/internal/validation"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Record is one projected row: authorized columns plus loaded relations.
type Record map[string]interface{}

// PagedResult is the terminal outcome of a list operation.
type PagedResult struct {
	Data    []Record `json:"data"`
	Total   int64    `json:"total"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
}

// ListOptions carries the caller's shaping of a list request. Everything
// in here is untrusted input; the pipeline narrows it to what the actor is
// authorized for.
type ListOptions struct {
	Attributes     []string
	With           []string
	WithAttributes map[string][]string
	Filters        map[string]interface{}
	Page           int
	PerPage        int
}

// FindOptions carries the caller's shaping of a single-record request.
type FindOptions struct {
	Attributes     []string
	With           []string
	WithAttributes map[string][]string
}

// Service is the CRUD facade. Every operation runs the same two fatal
// gates first, action permission then model resolution, before any other
// work happens.
type Service struct {
	db        *gorm.DB
	registry  *Registry
	gate      authz.Gate
	ownership authz.OwnershipService
	validator validation.Service
	builder   *Builder
}

func NewService(db *gorm.DB, registry *Registry, gate authz.Gate, ownership authz.OwnershipService, v validation.Service) *Service {
	return &Service{
		db:        db,
		registry:  registry,
		gate:      gate,
		ownership: ownership,
		validator: v,
		builder:   NewBuilder(db, registry, gate, ownership),
	}
}

// authorize is the AuthCheck -> ResolveModel prefix shared by every
// operation. A denied action comes back as ErrNotAuthorized, which the
// HTTP layer renders identically to ErrNotFound so that callers cannot
// distinguish "forbidden" from "absent".
func (s *Service) authorize(ctx context.Context, actor authz.Actor, model string, action Action) (*Descriptor, error) {
	name, err := NormalizeName(model)
	if err != nil {
		return nil, ErrNotFound
	}
	permitted, err := s.gate.HasModelPermission(ctx, actor, name, action.String())
	if err != nil {
		return nil, fmt.Errorf("authorization check: %w", err)
	}
	if !permitted {
		return nil, ErrNotAuthorized
	}
	d, err := s.registry.Resolve(name)
	if err != nil {
		return nil, ErrNotFound
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, actor authz.Actor, model string, opts ListOptions) (*PagedResult, error) {
	d, err := s.authorize(ctx, actor, model, ActionRead)
	if err != nil {
		return nil, err
	}

	plan, shape, err := s.builder.Build(ctx, actor, d, ActionRead, buildOptions{
		attributes:     opts.Attributes,
		with:           opts.With,
		withAttributes: opts.WithAttributes,
		filters:        opts.Filters,
	})
	if err != nil {
		return nil, err
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	var total int64
	if err := plan.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count %s: %w", d.Name, err)
	}

	slice := d.NewSlice()
	err = plan.
		Order(d.Table + "." + d.PrimaryKey).
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(slice).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.Name, err)
	}

	rows := reflect.ValueOf(slice).Elem()
	data := make([]Record, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		data = append(data, s.builder.projectValue(ctx, d, rows.Index(i), shape))
	}

	return &PagedResult{Data: data, Total: total, Page: page, PerPage: perPage}, nil
}

func (s *Service) Find(ctx context.Context, actor authz.Actor, model, id string, opts FindOptions) (Record, error) {
	d, err := s.authorize(ctx, actor, model, ActionRead)
	if err != nil {
		return nil, err
	}

	plan, shape, err := s.builder.Build(ctx, actor, d, ActionRead, buildOptions{
		attributes:     opts.Attributes,
		with:           opts.With,
		withAttributes: opts.WithAttributes,
	})
	if err != nil {
		return nil, err
	}

	rec := d.New()
	err = plan.Where(d.Table+"."+d.PrimaryKey+" = ?", id).First(rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", d.Name, err)
	}

	return s.builder.projectValue(ctx, d, reflect.ValueOf(rec), shape), nil
}

func (s *Service) Create(ctx context.Context, actor authz.Actor, model string, data map[string]interface{}) (Record, error) {
	d, err := s.authorize(ctx, actor, model, ActionCreate)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(data, s.registry.Rules(d.Name, ActionCreate)); err != nil {
		return nil, err
	}

	fillable, err := s.fillable(ctx, actor, d, ActionCreate, data)
	if err != nil {
		return nil, err
	}
	if stamper, ok := s.ownership.(authz.Stamper); ok {
		for col, value := range stamper.Stamp(d.Name, actor) {
			if d.HasColumn(col) {
				fillable[col] = value
			}
		}
	}

	rec := d.New()
	if err := decodeInto(fillable, rec); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("create %s: %w", d.Name, err)
	}

	s.audit(ctx, actor, "crud.create", d, rec)
	return s.builder.projectValue(ctx, d, reflect.ValueOf(rec), s.persistedShape(d, fillable)), nil
}

func (s *Service) Update(ctx context.Context, actor authz.Actor, model, id string, data map[string]interface{}) (Record, error) {
	d, err := s.authorize(ctx, actor, model, ActionUpdate)
	if err != nil {
		return nil, err
	}

	rec, err := s.lookup(ctx, actor, d, ActionUpdate, id)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(data, s.registry.Rules(d.Name, ActionUpdate)); err != nil {
		return nil, err
	}

	changes, err := s.fillable(ctx, actor, d, ActionUpdate, data)
	if err != nil {
		return nil, err
	}
	delete(changes, d.PrimaryKey)
	if len(changes) == 0 {
		return nil, ErrNotAuthorized
	}

	if err := s.db.WithContext(ctx).Model(rec).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update %s: %w", d.Name, err)
	}

	s.audit(ctx, actor, "crud.update", d, rec)
	return s.builder.projectValue(ctx, d, reflect.ValueOf(rec), s.persistedShape(d, changes)), nil
}

func (s *Service) Delete(ctx context.Context, actor authz.Actor, model, id string) error {
	d, err := s.authorize(ctx, actor, model, ActionDelete)
	if err != nil {
		return err
	}

	rec, err := s.lookup(ctx, actor, d, ActionDelete, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(rec).Error; err != nil {
		return fmt.Errorf("delete %s: %w", d.Name, err)
	}

	s.audit(ctx, actor, "crud.delete", d, rec)
	return nil
}

// lookup fetches the mutation target under the same ownership scope every
// read goes through; a row outside the actor's scope is indistinguishable
// from a missing one.
func (s *Service) lookup(ctx context.Context, actor authz.Actor, d *Descriptor, action Action, id string) (interface{}, error) {
	plan := s.db.WithContext(ctx).Model(d.New())
	plan = s.ownership.Scope(plan, d.Name, d.Table, action.String(), actor)

	rec := d.New()
	err := plan.Where(d.Table+"."+d.PrimaryKey+" = ?", id).First(rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", d.Name, err)
	}
	return rec, nil
}

// fillable narrows caller-supplied data to the action-authorized columns.
// Unauthorized keys are dropped silently; an outcome with nothing left to
// write is treated as not authorized.
func (s *Service) fillable(ctx context.Context, actor authz.Actor, d *Descriptor, action Action, data map[string]interface{}) (map[string]interface{}, error) {
	allowed, err := authorizedAttributes(ctx, s.gate, actor, d, action, nil)
	if err != nil {
		return nil, err
	}
	set := toSet(allowed)
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if _, ok := set[k]; ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil, ErrNotAuthorized
	}
	return out, nil
}

// persistedShape projects a created/updated record down to the columns the
// caller actually set, in schema column order, plus the primary key.
func (s *Service) persistedShape(d *Descriptor, written map[string]interface{}) *queryShape {
	attrs := make([]string, 0, len(written))
	for _, col := range d.Columns {
		if _, ok := written[col]; ok {
			attrs = append(attrs, col)
		}
	}
	return &queryShape{attrs: attrs}
}

// decodeInto binds a filtered attribute map onto a fresh model instance.
// Exposed models carry json tags matching their column names, so the JSON
// round trip is the binding. Type mismatches surface as field-level
// validation errors, not internal ones.
func decodeInto(data map[string]interface{}, rec interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(payload, rec); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &validation.Errors{Fields: map[string][]string{
				typeErr.Field: {"invalid value type"},
			}}
		}
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// audit records a mutation. Audit failures are logged, never propagated;
// the mutation itself already succeeded.
func (s *Service) audit(ctx context.Context, actor authz.Actor, action string, d *Descriptor, rec interface{}) {
	rv := reflect.ValueOf(rec)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	var recordID int64
	if v, _ := d.sch.PrioritizedPrimaryField.ValueOf(ctx, rv); v != nil {
		switch id := v.(type) {
		case int64:
			recordID = id
		case uint64:
			recordID = int64(id)
		case int:
			recordID = int64(id)
		case uint:
			recordID = int64(id)
		}
	}

	meta, _ := json.Marshal(map[string]interface{}{"model": d.Name})
	entry := models.AuditLog{
		OrgID:         actor.OrgID,
		UserID:        actor.UserID,
		Action:        action,
		ModelName:     d.Name,
		RecordID:      recordID,
		Metadata:      datatypes.JSON(meta),
		InitiatorName: actor.Email,
		CreatedAt:     time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		logging.WithError(err).Warnf("audit write failed for %s on %s", action, d.Name)
	}
}

// Registry exposes the service's registry for discovery endpoints.
func (s *Service) Registry() *Registry { return s.registry }

// Gate exposes the service's authorization gate.
func (s *Service) Gate() authz.Gate { return s.gate }
