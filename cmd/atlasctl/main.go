package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nulzo/atlas-api/internal/catalog"
	"github.com/nulzo/atlas-api/internal/cli"
	"github.com/nulzo/atlas-api/internal/config"
	"github.com/nulzo/atlas-api/internal/itinerary"
	"github.com/nulzo/atlas-api/internal/llm"
	_ "github.com/nulzo/atlas-api/internal/llm/ollama"     // register Ollama provider
	_ "github.com/nulzo/atlas-api/internal/llm/openrouter" // register OpenRouter provider
	"github.com/nulzo/atlas-api/internal/version"
)

// exitInvalid is returned by validate when the document has errors.
const exitInvalid = 2

var errInvalid = errors.New("itinerary is invalid")

var (
	cfgFile string
	noColor bool
	asJSON  bool
)

func main() {
	root := rootCmd()
	if err := root.Execute(); err != nil {
		if errors.Is(err, errInvalid) {
			os.Exit(exitInvalid)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "atlasctl",
		Short:         "Offline tools for the atlas travel-planning API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor || !isTerminal(cmd.OutOrStdout()) {
				cli.SetEnabled(false)
			}
			if cfgFile != "" {
				_ = os.Setenv("CONFIG_FILE", cfgFile)
			}
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print machine-readable JSON")

	root.AddCommand(
		validateCmd(),
		modelsCmd(),
		versionCmd(),
	)
	return root
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|->",
		Short: "Check an itinerary document and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			report := itinerary.ValidateBytes(data)
			if asJSON {
				cli.PrettyPrint(cmd.OutOrStdout(), report)
			} else {
				printReport(cmd.OutOrStdout(), report)
			}

			if !report.Valid {
				return errInvalid
			}
			return nil
		},
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func printReport(w io.Writer, r itinerary.Report) {
	for _, e := range r.Errors {
		fmt.Fprintf(w, "%s %s\n", cli.CrossMark(), e)
	}
	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "%s %s\n", cli.Arrow(), msg)
	}
	if r.Valid {
		fmt.Fprintln(w, cli.Stylize("valid", cli.Green))
	} else {
		fmt.Fprintln(w, cli.Stylize(fmt.Sprintf("invalid (%d errors)", len(r.Errors)), cli.Red))
	}
}

func modelsCmd() *cobra.Command {
	var (
		file     string
		tier     string
		provider string
		maxPrice string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Print the ranked model catalog",
		Long:  "Ranks a catalog read from --file, or fetched from the configured LLM upstream with the curated list as fallback.",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := catalog.Tier(tier)
			if t != "" && !t.Valid() {
				return fmt.Errorf("--tier must be one of free, cheap, premium")
			}

			opts := catalog.DefaultOptions()
			var raws []catalog.RawModel

			if file != "" {
				data, err := readInput(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				raws, err = catalog.ParseCatalog(data)
				if err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
			} else {
				cfg, err := config.LoadConfig()
				if err != nil {
					return err
				}
				opts = cfg.Catalog.Options
				raws = fetchCatalog(cmd.Context(), cmd.ErrOrStderr(), cfg.LLM, timeout)
			}

			ranked := catalog.Filter(catalog.Pipeline(raws, opts), t, provider)
			if maxPrice != "" {
				limit, ok := catalog.ParseCostLabel(maxPrice, opts)
				if !ok {
					return fmt.Errorf("--max-price %q is not a price label like %s", maxPrice, catalog.CostLabel(0.000005, catalog.TierCheap, opts.WithDefaults()))
				}
				ranked = slices.DeleteFunc(ranked, func(m catalog.ClassifiedModel) bool {
					return m.PromptCost > limit
				})
			}

			if asJSON {
				cli.PrettyPrint(cmd.OutOrStdout(), ranked)
				return nil
			}
			printModels(cmd.OutOrStdout(), ranked)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog JSON file, - for stdin")
	cmd.Flags().StringVar(&tier, "tier", "", "only show one tier")
	cmd.Flags().StringVar(&provider, "provider", "", "only show one provider")
	cmd.Flags().StringVar(&maxPrice, "max-price", "", "hide models above this rate, e.g. '$1.00/1M'")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "upstream request timeout")

	return cmd
}

func fetchCatalog(ctx context.Context, stderr io.Writer, cfg config.LLMConfig, timeout time.Duration) []catalog.RawModel {
	provider, err := llm.New(cfg)
	if err == nil {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		raws, fetchErr := provider.Catalog(ctx)
		if fetchErr == nil {
			return raws
		}
		err = fetchErr
	}

	fmt.Fprintf(stderr, "%s upstream catalog unavailable (%v), using the curated list\n", cli.WarningSign(), err)
	return catalog.Fallback()
}

func printModels(w io.Writer, models []catalog.ClassifiedModel) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROVIDER\tTIER\tPRICE\tCONTEXT")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Provider, m.Tier, m.CostLabel, m.ContextLength)
	}
	_ = tw.Flush()
}

func versionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version, optionally checking for a newer release",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
			if !check {
				return nil
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			update, err := version.NewChecker().Check(cmd.Context(), cfg.Updates.Repo, version.Version)
			if err != nil {
				return err
			}
			if update != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is available: %s\n", cli.WarningSign(), update.Latest, update.URL)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "query GitHub for the latest release")
	return cmd
}
