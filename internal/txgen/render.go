package txgen

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

// DefaultTxproxyImport is the import path of the interceptor package.
const DefaultTxproxyImport = "github.com/xraph/anvil/internal/txproxy"

const receiverName = "d"

// Config controls generation.
type Config struct {
	// Source is the Go file declaring the interfaces.
	Source string
	// Interfaces are the interface names to decorate.
	Interfaces []string
	// Output is the file to write. Defaults to <source>_tx.go.
	Output string
	// TxproxyImport overrides DefaultTxproxyImport.
	TxproxyImport string
}

// OutputPath returns the configured output path or the default next to
// the source.
func (c Config) OutputPath() string {
	if c.Output != "" {
		return c.Output
	}
	return strings.TrimSuffix(c.Source, ".go") + "_tx.go"
}

type templateData struct {
	Package    string
	Imports    []Import
	Interfaces []*Interface
	ContextPkg string
	Txproxy    string
}

var funcs = template.FuncMap{
	"params": func(ps []Param) string {
		parts := make([]string, len(ps))
		for i, p := range ps {
			if p.Variadic {
				parts[i] = p.Name + " ..." + p.Type
			} else {
				parts[i] = p.Name + " " + p.Type
			}
		}
		return strings.Join(parts, ", ")
	},
	"args": func(ps []Param) string {
		parts := make([]string, len(ps))
		for i, p := range ps {
			parts[i] = p.Name
			if p.Variadic {
				parts[i] += "..."
			}
		}
		return strings.Join(parts, ", ")
	},
	// checked lists the non-context arguments handed to the interceptor
	// for validation.
	"checked": func(ps []Param) string {
		var b strings.Builder
		for _, p := range ps[1:] {
			b.WriteString(", " + p.Name)
		}
		return b.String()
	},
	"results": func(rs []string) string {
		switch len(rs) {
		case 0:
			return ""
		case 1:
			return rs[0]
		default:
			return "(" + strings.Join(rs, ", ") + ")"
		}
	},
	"values": func(rs []string) []string {
		vars := make([]string, len(rs)-1)
		for i := range vars {
			vars[i] = fmt.Sprintf("r%d", i)
		}
		return vars
	},
	"join": strings.Join,
	"decorator": func(name string) string {
		return "tx" + name
	},
	"receiver": func() string { return receiverName },
}

const decoratorTemplate = `// Code generated by anvil-txgen. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	{{if .Name}}{{.Name}} {{end}}"{{.Path}}"
{{- end}}
	"{{.Txproxy}}"
)
{{$ctx := .ContextPkg}}
{{- range $it := .Interfaces}}
{{$dec := decorator $it.Name}}
// {{$dec}} runs {{$it.Name}} methods through a txproxy.Interceptor.
type {{$dec}} struct {
	target {{$it.Name}}
	ic     *txproxy.Interceptor
}

// NewTx{{$it.Name}} wraps target so the methods marked in the
// interceptor's attributes run under a transaction.
func NewTx{{$it.Name}}(target {{$it.Name}}, ic *txproxy.Interceptor) {{$it.Name}} {
	return &{{$dec}}{target: target, ic: ic}
}

// Bind{{$it.Name}} registers NewTx{{$it.Name}} with f.
func Bind{{$it.Name}}(f *txproxy.Factory) {
	txproxy.Bind[{{$it.Name}}](f, NewTx{{$it.Name}})
}
{{range $m := $it.Methods}}
func ({{receiver}} *{{$dec}}) {{$m.Name}}({{params $m.Params}}) {{results $m.Results}} {
{{- if eq $m.Mode "invoke"}}
	return {{receiver}}.ic.Invoke({{$m.CtxName}}, "{{$m.Name}}", func({{$m.CtxName}} {{$ctx}}.Context) error {
		return {{receiver}}.target.{{$m.Name}}({{args $m.Params}})
	}{{checked $m.Params}})
{{- else if eq $m.Mode "call"}}
	return txproxy.Call({{$m.CtxName}}, {{receiver}}.ic, "{{$m.Name}}", func({{$m.CtxName}} {{$ctx}}.Context) ({{index $m.Results 0}}, error) {
		return {{receiver}}.target.{{$m.Name}}({{args $m.Params}})
	}{{checked $m.Params}})
{{- else if eq $m.Mode "multi"}}
	{{- $vals := values $m.Results}}
	var (
	{{- range $i, $v := $vals}}
		{{$v}} {{index $m.Results $i}}
	{{- end}}
	)
	err := {{receiver}}.ic.Invoke({{$m.CtxName}}, "{{$m.Name}}", func({{$m.CtxName}} {{$ctx}}.Context) error {
		var err error
		{{join $vals ", "}}, err = {{receiver}}.target.{{$m.Name}}({{args $m.Params}})
		return err
	}{{checked $m.Params}})
	return {{join $vals ", "}}, err
{{- else}}
	{{if $m.Results}}return {{end}}{{receiver}}.target.{{$m.Name}}({{args $m.Params}})
{{- end}}
}
{{end}}
{{- end}}`

var decoratorTmpl = template.Must(template.New("decorator").Funcs(funcs).Parse(decoratorTemplate))

// Render produces the formatted decorator source for f.
func Render(f *File, txproxyImport string) ([]byte, error) {
	if txproxyImport == "" {
		txproxyImport = DefaultTxproxyImport
	}

	imports := make([]Import, 0, len(f.Imports))
	for _, imp := range f.Imports {
		if imp.Path != txproxyImport {
			imports = append(imports, imp)
		}
	}
	sort.Slice(imports, func(i, j int) bool { return imports[i].Path < imports[j].Path })

	data := templateData{
		Package:    f.Package,
		Imports:    imports,
		Interfaces: f.Interfaces,
		ContextPkg: f.ContextPkg,
		Txproxy:    txproxyImport,
	}

	var buf bytes.Buffer
	if err := decoratorTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("txgen: execute template: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.Bytes(), fmt.Errorf("txgen: format source: %w", err)
	}
	return formatted, nil
}

// Result summarises one generation run.
type Result struct {
	Output     string
	Interfaces []*Interface
}

// Transactional counts the methods of it routed through the interceptor.
func (it *Interface) Transactional() int {
	n := 0
	for _, m := range it.Methods {
		if m.Mode != ModeDirect {
			n++
		}
	}
	return n
}

// Generate parses cfg.Source, renders the decorators and writes them to
// the output path.
func Generate(cfg Config) (*Result, error) {
	parsed, err := ParseFile(cfg.Source, cfg.Interfaces...)
	if err != nil {
		return nil, err
	}

	src, err := Render(parsed, cfg.TxproxyImport)
	out := cfg.OutputPath()
	if err != nil {
		// keep the unformatted output around for debugging
		if src != nil {
			_ = os.WriteFile(out, src, 0o600)
		}
		return nil, err
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("txgen: create output dir: %w", err)
		}
	}
	if err := os.WriteFile(out, src, 0o600); err != nil {
		return nil, fmt.Errorf("txgen: write file: %w", err)
	}

	return &Result{Output: out, Interfaces: parsed.Interfaces}, nil
}
