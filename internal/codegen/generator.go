package codegen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	mkdirPerm = 0755
	filePerm  = 0644
)

// Generator generates a mapping package from event and call signatures.
type Generator struct {
	Name       string   `yaml:"name"`    // Mapping name (e.g., "Balances")
	Package    string   `yaml:"package"` // Go package name (e.g., "balances")
	Events     []string `yaml:"events"`  // Event signatures
	Calls      []string `yaml:"calls"`   // Call signatures
	OutputDir  string   `yaml:"output"`  // Output directory path
	ImportPath string   `yaml:"import"`  // Go import path of the generated package
	Force      bool     `yaml:"-"`       // Overwrite existing files
	DryRun     bool     `yaml:"-"`       // Don't write files, just show what would be generated

	// Out receives progress output; os.Stdout when nil.
	Out io.Writer `yaml:"-"`
}

// GeneratedFiles represents the files that were generated.
type GeneratedFiles struct {
	ModelsFile     string // Path to models.go
	HandlersFile   string // Path to handlers.go
	RegisterFile   string // Path to register.go
	MigrationsFile string // Path to migrations/migrations.go
	SQLFile        string // Path to migrations/001_initial.sql
	ReadmeFile     string // Path to README.md
}

// LoadGenerator reads generator settings from a YAML file:
//
//	name: Balances
//	events:
//	  - balances.Transfer(from: AccountId, to: AccountId, amount: Balance)
//	calls:
//	  - balances.setBalance(who: LookupSource, newFree: Compact<Balance>)
func LoadGenerator(path string) (*Generator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read generator config: %w", err)
	}

	var g Generator
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse generator config: %w", err)
	}

	return &g, nil
}

// Generate generates all mapping files.
func (g *Generator) Generate() (*GeneratedFiles, error) {
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	signatures, err := g.parseSignatures()
	if err != nil {
		return nil, fmt.Errorf("failed to parse signatures: %w", err)
	}

	if g.Package == "" {
		g.Package = strings.ToLower(g.Name)
	}

	if g.OutputDir == "" {
		g.OutputDir = filepath.Join(".", "mappings", g.Package)
	}

	if g.ImportPath == "" {
		modulePath, err := getModulePath()
		if err != nil {
			g.ImportPath = "yourproject/mappings/" + g.Package
		} else {
			cleanPath := filepath.Clean(g.OutputDir)
			cleanPath = strings.TrimPrefix(cleanPath, "./")
			cleanPath = filepath.ToSlash(cleanPath)
			g.ImportPath = modulePath + "/" + cleanPath
		}
	}

	data := &TemplateData{
		Name:       g.Name,
		Package:    g.Package,
		ImportPath: g.ImportPath,
		Framework:  frameworkModule,
		Signatures: signatures,
	}

	if !g.Force {
		if _, err := os.Stat(g.OutputDir); err == nil {
			return nil, fmt.Errorf("output directory already exists: %s (use --force to overwrite)", g.OutputDir)
		}
	}

	type fileGen struct {
		path     *string
		render   func(*TemplateData) (string, error)
		filename string
		desc     string
	}

	files := &GeneratedFiles{}
	fileGens := []fileGen{
		{&files.ModelsFile, RenderModels, "models.go", "models"},
		{&files.HandlersFile, RenderHandlers, "handlers.go", "handlers"},
		{&files.RegisterFile, RenderRegister, "register.go", "register"},
		{&files.MigrationsFile, RenderMigrations, "migrations/migrations.go", "migrations"},
		{&files.SQLFile, RenderInitialSQL, "migrations/001_initial.sql", "initial SQL"},
		{&files.ReadmeFile, RenderReadme, "README.md", "readme"},
	}

	// render everything before writing so a bad signature leaves no partial package
	contents := make([]string, len(fileGens))
	for i, fg := range fileGens {
		content, err := fg.render(data)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", fg.desc, err)
		}
		contents[i] = content
		*fg.path = filepath.Join(g.OutputDir, fg.filename)
	}

	for i, fg := range fileGens {
		if err := g.writeFile(*fg.path, contents[i]); err != nil {
			return nil, err
		}
	}

	return files, nil
}

// validate validates the generator configuration.
func (g *Generator) validate() error {
	if g.Name == "" {
		return fmt.Errorf("mapping name is required")
	}

	if len(g.Events) == 0 && len(g.Calls) == 0 {
		return fmt.Errorf("at least one event or call signature is required")
	}

	firstChar := rune(g.Name[0])
	if firstChar < 'A' || firstChar > 'Z' {
		return fmt.Errorf("mapping name should start with an uppercase letter: %s", g.Name)
	}

	return nil
}

// parseSignatures parses events then calls. Entity names must be unique across both.
func (g *Generator) parseSignatures() ([]*Signature, error) {
	signatures := make([]*Signature, 0, len(g.Events)+len(g.Calls))
	entities := make(map[string]string)

	parse := func(sigs []string, kind Kind) error {
		for i, raw := range sigs {
			sig, err := ParseSignature(raw, kind)
			if err != nil {
				return fmt.Errorf("invalid %s signature #%d '%s': %w", kind, i+1, raw, err)
			}

			if prev, ok := entities[sig.EntityName()]; ok {
				return fmt.Errorf("duplicate entity name %s for %s and %s", sig.EntityName(), prev, sig.FullName())
			}
			entities[sig.EntityName()] = sig.FullName()

			signatures = append(signatures, sig)
		}
		return nil
	}

	if err := parse(g.Events, EventKind); err != nil {
		return nil, err
	}
	if err := parse(g.Calls, CallKind); err != nil {
		return nil, err
	}

	return signatures, nil
}

func (g *Generator) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// writeFile writes content to a file, respecting DryRun and Force flags.
func (g *Generator) writeFile(path, content string) error {
	if g.DryRun {
		fmt.Fprintf(g.out(), "Would create: %s\n", path)
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, mkdirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if !g.Force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", path)
		}
	}

	if err := os.WriteFile(path, []byte(content), filePerm); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	fmt.Fprintf(g.out(), "Generated: %s\n", path)
	return nil
}

// getModulePath reads the module path from go.mod file.
func getModulePath() (string, error) {
	data, err := os.ReadFile("go.mod")
	if err != nil {
		return "", err
	}

	for line := range strings.SplitSeq(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module")), nil
		}
	}

	return "", fmt.Errorf("module directive not found in go.mod")
}

// PrintSummary prints a summary of what was generated.
func (g *Generator) PrintSummary(files *GeneratedFiles) {
	w := g.out()

	fmt.Fprintln(w, "\n✓ Successfully generated mapping!")
	fmt.Fprintf(w, "\nMapping: %s\n", g.Name)
	fmt.Fprintf(w, "Package: %s\n", g.Package)
	fmt.Fprintf(w, "Output:  %s\n", g.OutputDir)
	fmt.Fprintf(w, "Events:  %d\n", len(g.Events))
	fmt.Fprintf(w, "Calls:   %d\n", len(g.Calls))

	fmt.Fprintln(w, "\nGenerated files:")
	for _, f := range []string{
		files.ModelsFile, files.HandlersFile, files.RegisterFile,
		files.MigrationsFile, files.SQLFile, files.ReadmeFile,
	} {
		fmt.Fprintf(w, "  • %s\n", f)
	}

	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Review the generated handlers")
	fmt.Fprintln(w, "  2. Import the package in cmd/processor/main.go:")
	fmt.Fprintf(w, "     import _ \"%s\"\n", g.ImportPath)
	fmt.Fprintln(w, "  3. Bind the handlers in config.yaml, see the generated README.md")
}
