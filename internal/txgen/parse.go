// Package txgen generates transactional decorators for interfaces. A
// decorator implements the interface, holds the target and routes every
// method that takes a context.Context first and returns an error last
// through a txproxy.Interceptor.
package txgen

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path"
	"strconv"
	"strings"
)

// Mode says how a generated method reaches its target.
type Mode string

const (
	// ModeDirect delegates without touching the interceptor.
	ModeDirect Mode = "direct"
	// ModeInvoke wraps a method returning only an error.
	ModeInvoke Mode = "invoke"
	// ModeCall wraps a method returning a value and an error.
	ModeCall Mode = "call"
	// ModeMulti wraps a method returning several values and an error.
	ModeMulti Mode = "multi"
)

// Param is one method parameter.
type Param struct {
	Name     string
	Type     string
	Variadic bool
}

// Method is one interface method and how its decorator is generated.
type Method struct {
	Name    string
	Params  []Param
	Results []string
	Mode    Mode
	// CtxName is the name of the leading context parameter.
	CtxName string
}

// Interface is a parsed interface ready for rendering.
type Interface struct {
	Name    string
	Methods []Method
}

// Import is a package import needed by the generated file.
type Import struct {
	Name string
	Path string
}

// File is the parse result for one source file.
type File struct {
	Package    string
	Interfaces []*Interface
	Imports    []Import
	// ContextPkg is the local name of the "context" import.
	ContextPkg string
}

// ParseFile reads filename and extracts the named interfaces.
func ParseFile(filename string, names ...string) (*File, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("txgen: read source: %w", err)
	}
	return ParseSource(filename, src, names...)
}

// ParseSource extracts the named interfaces from src.
func ParseSource(filename string, src []byte, names ...string) (*File, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("txgen: no interface names given")
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("txgen: parse %s: %w", filename, err)
	}

	p := &fileParser{
		file:       file,
		interfaces: collectInterfaces(file),
		imports:    collectImports(file),
		used:       make(map[string]bool),
	}
	p.contextPkg = p.localName("context")

	out := &File{Package: file.Name.Name, ContextPkg: p.contextPkg}
	for _, name := range names {
		it, err := p.parseInterface(name)
		if err != nil {
			return nil, err
		}
		out.Interfaces = append(out.Interfaces, it)
	}

	for _, imp := range p.imports {
		if p.used[imp.local] {
			out.Imports = append(out.Imports, Import{Name: imp.alias, Path: imp.path})
		}
	}
	return out, nil
}

type sourceImport struct {
	alias string
	local string
	path  string
}

type fileParser struct {
	file       *ast.File
	interfaces map[string]*ast.InterfaceType
	imports    []sourceImport
	used       map[string]bool
	contextPkg string
}

func collectInterfaces(file *ast.File) map[string]*ast.InterfaceType {
	found := make(map[string]*ast.InterfaceType)
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			if it, ok := ts.Type.(*ast.InterfaceType); ok {
				found[ts.Name.Name] = it
			}
		}
	}
	return found
}

func collectImports(file *ast.File) []sourceImport {
	imports := make([]sourceImport, 0, len(file.Imports))
	for _, spec := range file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		imp := sourceImport{path: p, local: defaultPackageName(p)}
		if spec.Name != nil {
			if spec.Name.Name == "_" || spec.Name.Name == "." {
				continue
			}
			imp.alias = spec.Name.Name
			imp.local = spec.Name.Name
		}
		imports = append(imports, imp)
	}
	return imports
}

// defaultPackageName guesses the package name of an import path the way
// goimports does: the last element without a major version suffix.
func defaultPackageName(importPath string) string {
	base := path.Base(importPath)
	if len(base) > 1 && base[0] == 'v' && isDigits(base[1:]) {
		base = path.Base(path.Dir(importPath))
	}
	if i := strings.Index(base, ".v"); i > 0 && isDigits(base[i+2:]) {
		base = base[:i]
	}
	base = strings.TrimPrefix(base, "go-")
	return strings.ReplaceAll(base, "-", "_")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (p *fileParser) localName(importPath string) string {
	for _, imp := range p.imports {
		if imp.path == importPath {
			return imp.local
		}
	}
	return ""
}

func (p *fileParser) parseInterface(name string) (*Interface, error) {
	it, ok := p.interfaces[name]
	if !ok {
		return nil, fmt.Errorf("txgen: interface %s not found in %s", name, p.file.Name.Name)
	}

	out := &Interface{Name: name}
	if err := p.collectMethods(out, it, map[string]bool{name: true}); err != nil {
		return nil, err
	}
	if len(out.Methods) == 0 {
		return nil, fmt.Errorf("txgen: interface %s has no methods", name)
	}
	return out, nil
}

func (p *fileParser) collectMethods(out *Interface, it *ast.InterfaceType, seen map[string]bool) error {
	for _, field := range it.Methods.List {
		switch typ := field.Type.(type) {
		case *ast.FuncType:
			for _, ident := range field.Names {
				out.Methods = append(out.Methods, p.parseMethod(ident.Name, typ))
			}
		case *ast.Ident:
			embedded, ok := p.interfaces[typ.Name]
			if !ok {
				return fmt.Errorf("txgen: %s embeds %s, which is not an interface in this file", out.Name, typ.Name)
			}
			if seen[typ.Name] {
				continue
			}
			seen[typ.Name] = true
			if err := p.collectMethods(out, embedded, seen); err != nil {
				return err
			}
		default:
			return fmt.Errorf("txgen: %s embeds %s, only interfaces declared in the same file are supported",
				out.Name, types.ExprString(field.Type))
		}
	}
	return nil
}

func (p *fileParser) parseMethod(name string, fn *ast.FuncType) Method {
	m := Method{Name: name, Mode: ModeDirect}

	if fn.Results != nil {
		for _, field := range fn.Results.List {
			typeStr := p.typeString(field.Type)
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				m.Results = append(m.Results, typeStr)
			}
		}
	}

	reserved := map[string]bool{receiverName: true, "err": true}
	for i := range m.Results {
		reserved[fmt.Sprintf("r%d", i)] = true
	}
	idx := 0
	for _, field := range fn.Params.List {
		typ := field.Type
		variadic := false
		if ell, ok := typ.(*ast.Ellipsis); ok {
			variadic = true
			typ = ell.Elt
		}
		typeStr := p.typeString(typ)

		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		for _, ident := range names {
			paramName := ""
			if ident != nil {
				paramName = ident.Name
			}
			if idx == 0 && p.isContext(typ) && (paramName == "" || paramName == "_") {
				paramName = "ctx"
			}
			if paramName == "" || paramName == "_" || reserved[paramName] {
				paramName = fmt.Sprintf("p%d", idx)
			}
			reserved[paramName] = true
			m.Params = append(m.Params, Param{Name: paramName, Type: typeStr, Variadic: variadic})
			idx++
		}
	}

	if len(fn.Params.List) == 0 || !p.isContext(fn.Params.List[0].Type) {
		return m
	}
	if len(m.Results) == 0 || m.Results[len(m.Results)-1] != "error" {
		return m
	}

	m.CtxName = m.Params[0].Name
	switch len(m.Results) {
	case 1:
		m.Mode = ModeInvoke
	case 2:
		m.Mode = ModeCall
	default:
		m.Mode = ModeMulti
	}
	return m
}

func (p *fileParser) isContext(expr ast.Expr) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok || p.contextPkg == "" {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == p.contextPkg && sel.Sel.Name == "Context"
}

// typeString renders expr and records the imports it references.
func (p *fileParser) typeString(expr ast.Expr) string {
	ast.Inspect(expr, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if pkg, ok := sel.X.(*ast.Ident); ok {
				p.used[pkg.Name] = true
			}
			return false
		}
		return true
	})
	return types.ExprString(expr)
}
