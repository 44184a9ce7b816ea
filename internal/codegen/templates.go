package codegen

import (
	"bytes"
	_ "embed"
	"fmt"
	"go/format"
	"text/template"
)

//go:embed templates/models.go.tmpl
var modelsTemplate string

//go:embed templates/handlers.go.tmpl
var handlersTemplate string

//go:embed templates/register.go.tmpl
var registerTemplate string

//go:embed templates/migrations.go.tmpl
var migrationsTemplate string

//go:embed templates/001_initial.sql.tmpl
var initialSQLTemplate string

//go:embed templates/README.md.tmpl
var readmeTemplate string

const frameworkModule = "github.com/goran-ethernal/ChainProcessor"

// TemplateData represents the data passed to templates.
type TemplateData struct {
	Name       string       // Mapping name (PascalCase, e.g., "Balances")
	Package    string       // Go package name (lowercase, e.g., "balances")
	ImportPath string       // Full import path for the package
	Framework  string       // Module path of the processor packages the generated code imports
	Signatures []*Signature // Events followed by calls
}

// UsesJSON reports whether the generated models need encoding/json.
func (d *TemplateData) UsesJSON() bool {
	for _, s := range d.Signatures {
		for _, p := range s.Params {
			if NeedsJSON(p.Type) {
				return true
			}
		}
	}
	return false
}

// Events returns the event signatures.
func (d *TemplateData) Events() []*Signature {
	return d.ofKind(EventKind)
}

// Calls returns the call signatures.
func (d *TemplateData) Calls() []*Signature {
	return d.ofKind(CallKind)
}

func (d *TemplateData) ofKind(k Kind) []*Signature {
	var out []*Signature
	for _, s := range d.Signatures {
		if s.Kind == k {
			out = append(out, s)
		}
	}
	return out
}

// RenderModels generates the models.go file content.
func RenderModels(data *TemplateData) (string, error) {
	return renderGo("models", modelsTemplate, data)
}

// RenderHandlers generates the handlers.go file content.
func RenderHandlers(data *TemplateData) (string, error) {
	return renderGo("handlers", handlersTemplate, data)
}

// RenderRegister generates the register.go file content.
func RenderRegister(data *TemplateData) (string, error) {
	return renderGo("register", registerTemplate, data)
}

// RenderMigrations generates the migrations/migrations.go file content.
func RenderMigrations(data *TemplateData) (string, error) {
	return renderGo("migrations", migrationsTemplate, data)
}

// RenderInitialSQL generates the migrations/001_initial.sql file content.
func RenderInitialSQL(data *TemplateData) (string, error) {
	return renderTemplate("initial_sql", initialSQLTemplate, data)
}

// RenderReadme generates the README.md file content.
func RenderReadme(data *TemplateData) (string, error) {
	return renderTemplate("readme", readmeTemplate, data)
}

// renderGo renders a Go source template and gofmts the result.
func renderGo(name, tmplStr string, data *TemplateData) (string, error) {
	src, err := renderTemplate(name, tmplStr, data)
	if err != nil {
		return "", err
	}

	formatted, err := format.Source([]byte(src))
	if err != nil {
		return "", fmt.Errorf("generated %s is not valid Go: %w", name, err)
	}

	return string(formatted), nil
}

// renderTemplate renders a template with the given data.
func renderTemplate(name, tmplStr string, data *TemplateData) (string, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// templateFuncs returns the functions available in templates.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"GoParamType": GoParamType,
		"GoFieldType": GoFieldType,
		"DBTypeName":  DBTypeName,
		"DBFieldName": DBFieldName,
		"MeddlerTag":  MeddlerTag,
		"FieldName":   FieldName,
		"FieldValue":  FieldValue,
		"JSONName":    JSONName,
		"TableConst":  TableConst,
		"ParamsType":  ParamsType,
	}
}
