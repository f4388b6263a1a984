// Command anvil-txgen generates transactional decorators for service
// interfaces.
//
//	//go:generate go run github.com/xraph/anvil/cmd/anvil-txgen --source service.go --interface ClazzService
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xraph/anvil/internal/txgen"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed, color.Bold).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
)

func newRootCmd() *cobra.Command {
	var (
		cfg     txgen.Config
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "anvil-txgen",
		Short: "Generate transactional decorators for service interfaces",
		Long: `anvil-txgen parses a Go source file and writes, for each named interface, a
decorator that implements it and routes every method taking a context.Context
first and returning an error last through a txproxy.Interceptor.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}
			return run(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Source, "source", "s", os.Getenv("GOFILE"), "Go file declaring the interfaces (defaults to $GOFILE)")
	flags.StringSliceVarP(&cfg.Interfaces, "interface", "i", nil, "interface to decorate (repeatable)")
	flags.StringVarP(&cfg.Output, "output", "o", "", "output file (defaults to <source>_tx.go)")
	flags.StringVar(&cfg.TxproxyImport, "txproxy", txgen.DefaultTxproxyImport, "import path of the txproxy package")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	_ = cmd.MarkFlagRequired("interface")

	return cmd
}

func run(cmd *cobra.Command, cfg txgen.Config) error {
	if cfg.Source == "" {
		return fmt.Errorf("--source is required outside go generate")
	}

	res, err := txgen.Generate(cfg)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", red("✗"), err)
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s generated %s\n", green("✓"), cyan(res.Output))
	for _, it := range res.Interfaces {
		fmt.Fprintf(out, "  %s %s\n", it.Name,
			gray(fmt.Sprintf("(%d methods, %d transactional)", len(it.Methods), it.Transactional())))
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
