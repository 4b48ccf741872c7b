// Package resource holds the model registries that map a configured model name to the
// constructor of a camera or detector implementation.
package resource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ysay/zari-vision/config"
	"github.com/ysay/zari-vision/logging"
)

// A Create builds a resource from its model specific attributes.
type Create[ResourceT any] func(ctx context.Context, attrs config.AttributeMap, logger logging.Logger) (ResourceT, error)

// A Registration stores construction info for a model. A constructor is mandatory.
type Registration[ResourceT any] struct {
	Constructor Create[ResourceT]
}

// A Registry maps model names of one API (camera, vision) to their registrations.
type Registry[ResourceT any] struct {
	api string

	mu     sync.RWMutex
	models map[string]Registration[ResourceT]
}

// NewRegistry returns an empty registry for the named API.
func NewRegistry[ResourceT any](api string) *Registry[ResourceT] {
	return &Registry[ResourceT]{api: api, models: map[string]Registration[ResourceT]{}}
}

// API returns the name of the API the registry serves.
func (r *Registry[ResourceT]) API() string {
	return r.api
}

// Register registers a model. It panics on a nil constructor or a duplicate model.
func (r *Registry[ResourceT]) Register(model string, reg Registration[ResourceT]) {
	if reg.Constructor == nil {
		panic(fmt.Sprintf("cannot register a nil constructor for %s model %q", r.api, model))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[model]; ok {
		panic(fmt.Sprintf("trying to register two %s models with the same name %q", r.api, model))
	}
	r.models[model] = reg
}

// Deregister removes a model.
func (r *Registry[ResourceT]) Deregister(model string) {
	r.mu.Lock()
	delete(r.models, model)
	r.mu.Unlock()
}

// Lookup returns the registration for a model, if any.
func (r *Registry[ResourceT]) Lookup(model string) (Registration[ResourceT], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.models[model]
	return reg, ok
}

// Models returns the registered model names in sorted order.
func (r *Registry[ResourceT]) Models() []string {
	r.mu.RLock()
	names := lo.Keys(r.models)
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// New constructs the resource described by cfg.
func (r *Registry[ResourceT]) New(ctx context.Context, cfg config.ComponentConfig, logger logging.Logger) (ResourceT, error) {
	var zero ResourceT
	reg, ok := r.Lookup(cfg.Model)
	if !ok {
		return zero, NewModelNotRegisteredError(r.api, cfg.Model, r.Models())
	}
	res, err := reg.Constructor(ctx, cfg.Attributes, logger.Sublogger(cfg.Model))
	if err != nil {
		return zero, errors.Wrapf(err, "failed to build %s model %q", r.api, cfg.Model)
	}
	return res, nil
}

// A Validator checks a native config after it has been decoded.
type Validator interface {
	Validate(path string) error
}

// NativeConfig decodes attributes into a new ConfigT and validates it when *ConfigT implements
// Validator.
func NativeConfig[ConfigT any](attrs config.AttributeMap) (*ConfigT, error) {
	conf := new(ConfigT)
	if err := config.TransformAttributeMapToStruct(conf, attrs); err != nil {
		return nil, err
	}
	if v, ok := any(conf).(Validator); ok {
		if err := v.Validate("attributes"); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

// NewModelNotRegisteredError is returned when a config names a model nothing registered.
func NewModelNotRegisteredError(api, model string, known []string) error {
	return errors.Errorf("unknown %s model %q (registered models: %v)", api, model, known)
}
