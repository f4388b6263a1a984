package txproxy

import (
	"sort"

	"github.com/xraph/anvil/internal/tx"
)

// Attributes are the transaction markers of one component: an optional
// type-level definition and per-method definitions. A method definition
// takes precedence over the type-level one.
type Attributes struct {
	Type    *tx.Definition
	Methods map[string]tx.Definition
}

// AttributeSource is implemented by components that declare their own
// markers.
//
// Example:
//
//	func (s *clazzService) TransactionAttributes() txproxy.Attributes {
//	    return txproxy.Attributes{
//	        Methods: map[string]tx.Definition{"Delete": {Propagation: tx.Required}},
//	    }
//	}
type AttributeSource interface {
	TransactionAttributes() Attributes
}

// ForType returns attributes marking every method with def.
func ForType(def tx.Definition) Attributes {
	return Attributes{Type: &def}
}

// Method returns a copy of a with def recorded for method.
func (a Attributes) Method(method string, def tx.Definition) Attributes {
	methods := make(map[string]tx.Definition, len(a.Methods)+1)
	for k, v := range a.Methods {
		methods[k] = v
	}
	methods[method] = def
	a.Methods = methods
	return a
}

// Lookup returns the definition governing method: the method marker if
// present, else the type marker.
func (a Attributes) Lookup(method string) (tx.Definition, bool) {
	if def, ok := a.Methods[method]; ok {
		return def, true
	}
	if a.Type != nil {
		return *a.Type, true
	}
	return tx.Definition{}, false
}

// IsEmpty reports whether a marks nothing.
func (a Attributes) IsEmpty() bool {
	return a.Type == nil && len(a.Methods) == 0
}

// MarkedMethods returns the method names with an explicit marker, sorted.
func (a Attributes) MarkedMethods() []string {
	names := make([]string, 0, len(a.Methods))
	for name := range a.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AttributesOf returns the markers instance declares, if any.
func AttributesOf(instance any) Attributes {
	if src, ok := instance.(AttributeSource); ok {
		return src.TransactionAttributes()
	}
	return Attributes{}
}
