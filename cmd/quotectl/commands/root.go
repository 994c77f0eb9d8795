package commands

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotedesk/checkout/internal/catalog"
	"github.com/quotedesk/checkout/internal/pricing"
)

type options struct {
	catalogURL   string
	timeout      time.Duration
	rateCardFile string
}

// Execute runs the quotectl root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "quotectl",
		Short:        "Inspect the translation catalog and price quotes",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.catalogURL, "catalog", "", "catalog service base URL (default: built-in catalog)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 8*time.Second, "catalog request timeout")
	root.PersistentFlags().StringVar(&opts.rateCardFile, "rate-card", "", "YAML rate card for menu prices (default: built-in card)")

	root.AddCommand(
		languagesCmd(opts),
		certificationsCmd(opts),
		estimateCmd(opts),
		menuCmd(opts),
	)
	return root
}

func (o *options) backend() (catalog.Backend, error) {
	base := strings.TrimSpace(o.catalogURL)
	if base == "" {
		return catalog.NewStatic(), nil
	}
	return catalog.NewClient(base, catalog.WithTimeout(o.timeout))
}

func (o *options) engine() (*pricing.Engine, error) {
	if path := strings.TrimSpace(o.rateCardFile); path != "" {
		card, err := pricing.LoadRateCardFile(path)
		if err != nil {
			return nil, err
		}
		return pricing.NewEngine(card), nil
	}
	return pricing.NewEngine(pricing.DefaultRateCard()), nil
}
