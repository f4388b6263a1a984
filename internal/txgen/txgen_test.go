package txgen

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceSource = `package school

import (
	"context"

	"github.com/google/uuid"
)

type Reader interface {
	Get(ctx context.Context, id uuid.UUID) (*Clazz, error)
}

type ClazzService interface {
	Reader
	Delete(ctx context.Context, id uuid.UUID) error
	Move(ctx context.Context, id uuid.UUID, teacher string) (int, bool, error)
	Rename(context.Context, string, ...string) error
	Name() string
	Reset(d int, err error)
}

type Clazz struct{}
`

func parseService(t *testing.T, names ...string) *File {
	t.Helper()
	f, err := ParseSource("service.go", []byte(serviceSource), names...)
	require.NoError(t, err)
	return f
}

func methodByName(it *Interface, name string) Method {
	for _, m := range it.Methods {
		if m.Name == name {
			return m
		}
	}
	return Method{}
}

func TestParseSource_Modes(t *testing.T) {
	f := parseService(t, "ClazzService")

	assert.Equal(t, "school", f.Package)
	assert.Equal(t, "context", f.ContextPkg)
	require.Len(t, f.Interfaces, 1)

	it := f.Interfaces[0]
	assert.Len(t, it.Methods, 6)
	assert.Equal(t, 4, it.Transactional())

	tests := []struct {
		method string
		mode   Mode
	}{
		{"Get", ModeCall},
		{"Delete", ModeInvoke},
		{"Move", ModeMulti},
		{"Rename", ModeInvoke},
		{"Name", ModeDirect},
		{"Reset", ModeDirect},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.mode, methodByName(it, tt.method).Mode)
		})
	}
}

func TestParseSource_ParamNames(t *testing.T) {
	it := parseService(t, "ClazzService").Interfaces[0]

	rename := methodByName(it, "Rename")
	require.Len(t, rename.Params, 3)
	assert.Equal(t, "ctx", rename.CtxName)
	assert.Equal(t, "p1", rename.Params[1].Name)
	assert.True(t, rename.Params[2].Variadic)
	assert.Equal(t, "string", rename.Params[2].Type)

	reset := methodByName(it, "Reset")
	assert.Equal(t, []string{"p0", "p1"}, []string{reset.Params[0].Name, reset.Params[1].Name})

	get := methodByName(it, "Get")
	assert.Equal(t, "uuid.UUID", get.Params[1].Type)
	assert.Equal(t, []string{"*Clazz", "error"}, get.Results)
}

func TestParseSource_Errors(t *testing.T) {
	_, err := ParseSource("service.go", []byte(serviceSource))
	assert.Error(t, err)

	_, err = ParseSource("service.go", []byte(serviceSource), "Missing")
	assert.ErrorContains(t, err, "Missing not found")

	_, err = ParseSource("service.go", []byte("package x\n\ntype Empty interface{}\n"), "Empty")
	assert.ErrorContains(t, err, "no methods")

	_, err = ParseSource("service.go", []byte("package x\n\nimport \"io\"\n\ntype R interface{ io.Reader }\n"), "R")
	assert.ErrorContains(t, err, "only interfaces declared in the same file")

	_, err = ParseSource("service.go", []byte("package x\nfunc {"), "R")
	assert.Error(t, err)
}

func TestRender_ProducesValidDecorator(t *testing.T) {
	src, err := Render(parseService(t, "ClazzService"), "")
	require.NoError(t, err)

	out := string(src)
	assert.Contains(t, out, "// Code generated by anvil-txgen. DO NOT EDIT.")
	assert.Contains(t, out, `"github.com/google/uuid"`)
	assert.Contains(t, out, `"github.com/xraph/anvil/internal/txproxy"`)
	assert.Contains(t, out, "type txClazzService struct")
	assert.Contains(t, out, "func NewTxClazzService(target ClazzService, ic *txproxy.Interceptor) ClazzService")
	assert.Contains(t, out, "txproxy.Bind[ClazzService](f, NewTxClazzService)")
	assert.Contains(t, out, `return d.ic.Invoke(ctx, "Delete", func(ctx context.Context) error {`)
	assert.Contains(t, out, `return txproxy.Call(ctx, d.ic, "Get", func(ctx context.Context) (*Clazz, error) {`)
	assert.Contains(t, out, "r0, r1, err = d.target.Move(ctx, id, teacher)")
	assert.Contains(t, out, "\t}, id, teacher)")
	assert.Contains(t, out, "\t}, p1, p2)")
	assert.Contains(t, out, "return d.target.Rename(ctx, p1, p2...)")
	assert.Contains(t, out, "return d.target.Name()")
	assert.Contains(t, out, "\td.target.Reset(p0, p1)")

	_, err = parser.ParseFile(token.NewFileSet(), "service_tx.go", src, 0)
	assert.NoError(t, err)
}

func TestRender_OnlyUsedImports(t *testing.T) {
	src := `package svc

import (
	stdctx "context"
	"io"
	"time"
)

var _ io.Reader

type Clock interface {
	Sleep(ctx stdctx.Context, d time.Duration) error
}
`
	f, err := ParseSource("clock.go", []byte(src), "Clock")
	require.NoError(t, err)
	assert.Equal(t, "stdctx", f.ContextPkg)
	assert.Equal(t, []Import{{Name: "stdctx", Path: "context"}, {Path: "time"}}, f.Imports)

	out, err := Render(f, "example.com/txproxy")
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"io"`)
	assert.Contains(t, string(out), `func(ctx stdctx.Context) error`)
	assert.Contains(t, string(out), `d.target.Sleep(ctx, p1)`)
}

func TestDefaultPackageName(t *testing.T) {
	tests := map[string]string{
		"context":                   "context",
		"github.com/go-chi/chi/v5":  "chi",
		"gopkg.in/yaml.v3":          "yaml",
		"github.com/google/uuid":    "uuid",
		"github.com/jmoiron/sqlx":   "sqlx",
		"github.com/xraph/go-utils": "utils",
	}
	for in, want := range tests {
		assert.Equal(t, want, defaultPackageName(in), in)
	}
}

func TestGenerate_WritesOutput(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "service.go")
	require.NoError(t, os.WriteFile(source, []byte(serviceSource), 0o600))

	res, err := Generate(Config{Source: source, Interfaces: []string{"Reader", "ClazzService"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "service_tx.go"), res.Output)
	assert.Len(t, res.Interfaces, 2)

	written, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.Contains(t, string(written), "type txReader struct")
	assert.Contains(t, string(written), "type txClazzService struct")
}

func TestConfig_OutputPath(t *testing.T) {
	assert.Equal(t, "a/b_tx.go", Config{Source: "a/b.go"}.OutputPath())
	assert.Equal(t, "out.go", Config{Source: "a/b.go", Output: "out.go"}.OutputPath())
}
