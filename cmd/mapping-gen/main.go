package main

import (
	"fmt"
	"os"

	"github.com/goran-ethernal/ChainProcessor/internal/codegen"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	// Flags
	configFile  string
	name        string
	events      []string
	calls       []string
	output      string
	packageName string
	importPath  string
	force       bool
	dryRun      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mapping-gen",
	Short: "Generate mapping packages from Substrate event and call signatures",
	Long: `mapping-gen creates a mapping package from Substrate event and call signatures.
It generates typed entities, handlers that store them, registration code, database
migrations and documentation.`,
	Version: version,
	Example: `  # Generate a balances mapping
  mapping-gen --name Balances \
    --event "balances.Transfer(from: AccountId, to: AccountId, amount: Balance)" \
    --event "balances.Endowed(account: AccountId, freeBalance: Balance)" \
    --call "balances.setBalance(who: LookupSource, newFree: Compact<Balance>)"

  # Generate from a YAML file with custom output
  mapping-gen --config typegen.yml --output ./examples/mappings/staking

  # Preview generation without writing files
  mapping-gen --name Democracy --event "democracy.Proposed(PropIndex,Balance)" --dry-run`,
	RunE: runGenerate,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML file with name, events and calls")
	rootCmd.Flags().StringVarP(&name, "name", "n", "", "mapping name (PascalCase, e.g., 'Balances')")
	rootCmd.Flags().StringArrayVarP(&events, "event", "e", []string{},
		"event signature <section>.<Event>(...), can be specified multiple times")
	rootCmd.Flags().StringArrayVar(&calls, "call", []string{},
		"call signature <section>.<call>(...), can be specified multiple times")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: ./mappings/<package>)")
	rootCmd.Flags().StringVarP(&packageName, "package", "p", "", "Go package name (default: derived from name)")
	rootCmd.Flags().StringVarP(&importPath, "import", "i", "", "Go import path (default: auto-detected from go.mod)")
	rootCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing files")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be generated without writing files")
}

// newGenerator builds the generator from the config file, if any, with flags taking precedence.
func newGenerator() (*codegen.Generator, error) {
	gen := &codegen.Generator{}
	if configFile != "" {
		loaded, err := codegen.LoadGenerator(configFile)
		if err != nil {
			return nil, err
		}
		gen = loaded
	}

	if name != "" {
		gen.Name = name
	}
	if packageName != "" {
		gen.Package = packageName
	}
	if output != "" {
		gen.OutputDir = output
	}
	if importPath != "" {
		gen.ImportPath = importPath
	}
	gen.Events = append(gen.Events, events...)
	gen.Calls = append(gen.Calls, calls...)
	gen.Force = force
	gen.DryRun = dryRun

	return gen, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	gen, err := newGenerator()
	if err != nil {
		return err
	}

	files, err := gen.Generate()
	if err != nil {
		return err
	}

	if !dryRun {
		gen.PrintSummary(files)
	} else {
		fmt.Println("\nDry run complete. No files were created.")
	}

	return nil
}
