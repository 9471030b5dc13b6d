package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cmmoran/cxxffigen/internal/report"
	"github.com/cmmoran/cxxffigen/pkg/action/generate"
	"github.com/cmmoran/cxxffigen/pkg/bindgen"
)

func init() {
	rootCmd.AddCommand(NewGenerateCommand())
}

// importFlags are quick imports given on the command line; they extend the
// imports of the config file.
type importFlags struct {
	classes, functions, vars []string
}

func addOptionFlags(fs *pflag.FlagSet, o *bindgen.Options, imp *importFlags) {
	fs.StringVarP(&o.AST, "ast", "a", "", "AST snapshot produced by the frontend")
	fs.StringVarP(&o.BasePath, "base-path", "b", "", "headers below this path are project headers")
	fs.StringVarP(&o.OutputPath, "output", "o", "", "directory of the generated package")
	fs.StringVarP(&o.PackageName, "package", "p", "", "package name of the generated files (defaults to the output directory name)")
	fs.StringSliceVarP(&o.Files, "file", "f", []string{}, "header aggregated into the translation unit")
	fs.StringSliceVarP(&o.Include, "include", "I", []string{}, "include directory")
	fs.StringSliceVarP(&imp.classes, "class", "c", []string{}, "import a class with every constructor, destructor and method")
	fs.StringSliceVar(&imp.functions, "function", []string{}, "import a free function")
	fs.StringSliceVar(&imp.vars, "var", []string{}, "import a global variable")
}

// loadOptions merges config file settings with flags set on cmd.
func loadOptions(cmd *cobra.Command, flags *bindgen.Options, imp *importFlags) (*bindgen.Options, error) {
	o := bindgen.NewOptions()
	if err := viper.Unmarshal(o); err != nil {
		return nil, fmt.Errorf("%w: %v", bindgen.ErrInvalidConfig, err)
	}
	set := cmd.Flags().Changed
	if set("ast") {
		o.AST = flags.AST
	}
	if set("base-path") {
		o.BasePath = flags.BasePath
	}
	if set("output") {
		o.OutputPath = flags.OutputPath
	}
	if set("package") {
		o.PackageName = flags.PackageName
	}
	o.Files = append(o.Files, flags.Files...)
	o.Include = append(o.Include, flags.Include...)
	for _, c := range imp.classes {
		bindgen.WithClass(c, bindgen.All(), true, bindgen.All())(o)
	}
	for _, f := range imp.functions {
		bindgen.WithFunction(f)(o)
	}
	for _, v := range imp.vars {
		bindgen.WithVar(v)(o)
	}
	return o, nil
}

func NewGenerateCommand() *cobra.Command {
	var (
		flags = &bindgen.Options{}
		imp   = &importFlags{}
	)

	// generateCmd represents the cxxffigen generate command
	var generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "generate bindings",
		Long:  "Generate the Go binding package for the configured C++ imports",
		RunE: func(c *cobra.Command, args []string) error {
			opts, err := loadOptions(c, flags, imp)
			if err != nil {
				report.Error(c.ErrOrStderr(), err)
				return err
			}
			start := time.Now()
			res, err := generate.Generate(c.Context(), afero.NewOsFs(), opts)
			if err != nil {
				report.Error(c.ErrOrStderr(), err)
				return err
			}
			report.Print(c.OutOrStdout(), summary(res, time.Since(start)))
			return nil
		},
	}
	addOptionFlags(generateCmd.Flags(), flags, imp)

	return generateCmd
}

func summary(res *generate.Result, elapsed time.Duration) report.Summary {
	files := make([]string, len(res.Files))
	for i, f := range res.Files {
		files[i] = res.Rel(f)
	}
	return report.Summary{
		Output:   res.Output,
		Package:  res.PkgPath,
		Files:    files,
		Exports:  len(res.Exports),
		Warnings: res.Warnings,
		Elapsed:  elapsed,
	}
}
