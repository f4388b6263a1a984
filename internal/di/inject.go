package di

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/xraph/anvil/internal/errors"
	"github.com/xraph/anvil/internal/logger"
)

const injectTag = "inject"

// injection is a parsed inject tag.
//
//	Repo  TeacherRepository `inject:""`               by type, then by field name
//	DAO   *ClazzDAO         `inject:"clazzDAO"`       by name
//	Audit Auditor           `inject:",optional"`      left nil when unresolved
type injection struct {
	name     string
	optional bool
}

func parseInjectTag(tag string) injection {
	parts := strings.Split(tag, ",")
	inj := injection{name: strings.TrimSpace(parts[0])}
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "optional" {
			inj.optional = true
		}
	}
	return inj
}

// inject wires every inject-tagged field of instance. Instances that are not
// pointers to structs have nothing to inject.
func (c *containerImpl) inject(ch *chain, d *Descriptor, instance any) error {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := field.Tag.Lookup(injectTag)
		if !ok {
			continue
		}
		if !field.IsExported() {
			return errors.ErrInvalidComponent(d.Name,
				fmt.Sprintf("field %s is tagged %q but not exported", field.Name, injectTag))
		}

		inj := parseInjectTag(tag)
		dep, depName, err := c.resolveField(ch, d, field, inj)
		if err != nil {
			if inj.optional {
				c.logger.Debug("optional dependency left unset",
					logger.Component(d.Name),
					logger.String("field", field.Name),
					logger.String("dependency", depName),
					logger.Error(err),
				)
				continue
			}
			if errors.IsComponentNotFound(err) {
				return errors.ErrMissingDependency(d.Name, depName, err)
			}
			return err
		}

		if err := assign(v.Field(i), dep); err != nil {
			if inj.optional {
				continue
			}
			return errors.NewComponentError(d.Name, "inject "+field.Name, err)
		}
	}

	return nil
}

// resolveField applies the lookup order: explicit name, then declared type,
// then the field name in lowerCamel form.
func (c *containerImpl) resolveField(ch *chain, d *Descriptor, field reflect.StructField, inj injection) (any, string, error) {
	if inj.name != "" {
		dep, err := c.resolve(ch, inj.name)
		return dep, inj.name, err
	}

	if name, ok := c.findByType(field.Type, d.Name); ok {
		dep, err := c.resolve(ch, name)
		return dep, name, err
	}

	name := fieldComponentName(field.Name)
	if c.registry.Has(name) {
		dep, err := c.resolve(ch, name)
		return dep, name, err
	}

	return nil, field.Type.String(), errors.ErrNoComponentOfType(field.Type.String())
}

// findByType returns the first registered name, other than exclude, whose
// declared type is assignable to t.
func (c *containerImpl) findByType(t reflect.Type, exclude string) (string, bool) {
	for _, d := range c.registry.Descriptors() {
		if d.Name == exclude || d.Type == nil {
			continue
		}
		if d.Type.AssignableTo(t) {
			return d.Name, true
		}
	}
	return "", false
}

func assign(field reflect.Value, dep any) error {
	dv := reflect.ValueOf(dep)
	if !dv.IsValid() {
		return fmt.Errorf("%w: nil dependency", errors.ErrTypeMismatch)
	}
	if !dv.Type().AssignableTo(field.Type()) {
		return fmt.Errorf("%w: %s is not assignable to %s", errors.ErrTypeMismatch, dv.Type(), field.Type())
	}
	field.Set(dv)
	return nil
}

// fieldComponentName lower-cases the leading rune unless the name starts with
// an acronym: TeacherService -> teacherService, DB -> DB.
func fieldComponentName(name string) string {
	runes := []rune(name)
	if len(runes) == 0 {
		return name
	}
	if len(runes) > 1 && unicode.IsUpper(runes[0]) && unicode.IsUpper(runes[1]) {
		return name
	}
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// staticDependencies lists the names d depends on as far as can be known
// without constructing anything. Optional fields are left out.
func (c *containerImpl) staticDependencies(d *Descriptor) []string {
	var deps []string
	add := func(name string) {
		if name != "" && !contains(deps, name) {
			deps = append(deps, name)
		}
	}

	for _, name := range d.DependsOn {
		add(name)
	}
	add(d.FactoryOwner)

	if !isStructPointer(d.Type) {
		return deps
	}

	t := d.Type.Elem()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := field.Tag.Lookup(injectTag)
		if !ok {
			continue
		}
		inj := parseInjectTag(tag)
		if inj.optional {
			continue
		}
		switch {
		case inj.name != "":
			add(inj.name)
		default:
			if name, ok := c.findByType(field.Type, d.Name); ok {
				add(name)
			} else {
				// unresolved fields surface as missing at validation
				add(fieldComponentName(field.Name))
			}
		}
	}
	return deps
}

// dependencyGraph builds the static graph over all registered components.
func (c *containerImpl) dependencyGraph() *DependencyGraph {
	g := NewDependencyGraph()
	for _, d := range c.registry.Descriptors() {
		g.AddNode(d.Name, c.staticDependencies(d))
	}
	return g
}

// eagerRoots lists the components Start constructs: non-lazy singletons in
// registration order.
func (c *containerImpl) eagerRoots() []string {
	var roots []string
	for _, d := range c.registry.Descriptors() {
		if d.Singleton && !d.Lazy {
			roots = append(roots, d.Name)
		}
	}
	return roots
}
