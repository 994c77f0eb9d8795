package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quotedesk/checkout/internal/domain"
	"github.com/quotedesk/checkout/internal/pricing"
	"github.com/quotedesk/checkout/internal/services"
)

func languagesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the languages offered by the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := opts.backend()
			if err != nil {
				return err
			}
			langs, err := backend.ListLanguages(cmd.Context())
			if err != nil {
				return fmt.Errorf("list languages: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, code := range langs {
				fmt.Fprintf(out, "%-16s %s\n", code, services.LanguageLabel(code))
			}
			return nil
		},
	}
}

func certificationsCmd(opts *options) *cobra.Command {
	var tier, from, to string
	cmd := &cobra.Command{
		Use:   "certifications",
		Short: "Resolve certification options and route for a language pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serviceTier, ok := domain.ParseServiceTier(tier)
			if !ok {
				return fmt.Errorf("unknown service tier %q", tier)
			}
			pair, err := parsePair(from, to)
			if err != nil {
				return err
			}
			backend, err := opts.backend()
			if err != nil {
				return err
			}
			certs, err := backend.ListCertifications(cmd.Context(), serviceTier, pair)
			if err != nil {
				return fmt.Errorf("list certifications: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "route: %s\n", certs.Route)
			if len(certs.Options) == 0 {
				fmt.Fprintln(out, "No certifications available for the selected language pair")
				return nil
			}
			for _, c := range certs.Options {
				fmt.Fprintf(out, "- %s\n", c)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tier, "tier", string(domain.DefaultServiceTier), "service tier (Professional or Certified)")
	cmd.Flags().StringVar(&from, "from", "", "source language")
	cmd.Flags().StringVar(&to, "to", "", "target language")
	return cmd
}

func estimateCmd(opts *options) *cobra.Command {
	var from, to, priority, certification, pages string
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Price a translation from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := parsePair(from, to)
			if err != nil {
				return err
			}
			prio, ok := domain.ParsePriority(priority)
			if !ok {
				return fmt.Errorf("unknown priority %q", priority)
			}
			if strings.TrimSpace(certification) == "" {
				return fmt.Errorf("--certification is required")
			}
			backend, err := opts.backend()
			if err != nil {
				return err
			}
			engine, err := opts.engine()
			if err != nil {
				return err
			}
			quote, err := backend.GetPricing(cmd.Context(), pair, prio, certification)
			if err != nil {
				return fmt.Errorf("get pricing: %w", err)
			}
			est := engine.CatalogPriced(&quote, pricing.NormalizePages(pages))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "route:          %s\n", est.Route)
			if est.Route == domain.RouteCross {
				fmt.Fprintf(out, "via:            %s\n", domain.IntermediaryLanguage)
			}
			fmt.Fprintf(out, "price per page: %s\n", pricing.FormatAmount(est.PricePerPage))
			if est.FirstLeg.Valid && est.SecondLeg.Valid {
				fmt.Fprintf(out, "first leg:      %s\n", pricing.FormatAmount(est.FirstLeg.Decimal))
				fmt.Fprintf(out, "second leg:     %s\n", pricing.FormatAmount(est.SecondLeg.Decimal))
			}
			fmt.Fprintf(out, "pages:          %d\n", est.Pages)
			fmt.Fprintf(out, "priority:       %s\n", prio.Label())
			fmt.Fprintf(out, "total:          %s\n", pricing.FormatAmount(est.Total))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source language")
	cmd.Flags().StringVar(&to, "to", "", "target language")
	cmd.Flags().StringVar(&priority, "priority", string(domain.PriorityNormal), "normal or express")
	cmd.Flags().StringVar(&certification, "certification", "", "certification type offered for the pair")
	cmd.Flags().StringVar(&pages, "pages", "1", "page count")
	return cmd
}

func menuCmd(opts *options) *cobra.Command {
	var tier, certification, pages string
	var apostille, physicalCopy bool
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Price an order from the menu rate card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.engine()
			if err != nil {
				return err
			}
			card := engine.RateCard()
			sel := pricing.MenuSelection{
				Tier:          domain.TranslationTier(firstNonBlank(tier, string(card.DefaultTranslationTier()))),
				Certification: domain.MenuCertification(firstNonBlank(certification, string(card.DefaultCertification()))),
				Services:      domain.AdditionalServices{Apostille: apostille, PhysicalCopy: physicalCopy},
			}
			b, err := engine.MenuPriced(sel, pricing.NormalizePages(pages))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s x %d pages: %s\n", sel.Tier, b.Pages, pricing.FormatAmount(b.TranslationSubtotal))
			fmt.Fprintf(out, "%s: %s\n", sel.Certification, pricing.FormatAmount(b.CertificationFee))
			if apostille {
				fmt.Fprintf(out, "Apostille: %s\n", pricing.FormatAmount(b.ApostilleFee))
			}
			if physicalCopy {
				fmt.Fprintf(out, "Physical copy: %s\n", pricing.FormatAmount(b.PhysicalCopyFee))
			}
			fmt.Fprintf(out, "Total: %s %s\n", pricing.FormatAmount(b.Total), strings.ToUpper(card.Currency))
			return nil
		},
	}
	cmd.Flags().StringVar(&tier, "tier", "", "translation tier (default: first on the rate card)")
	cmd.Flags().StringVar(&certification, "certification", "", "certification (default: first on the rate card)")
	cmd.Flags().StringVar(&pages, "pages", "1", "page count")
	cmd.Flags().BoolVar(&apostille, "apostille", false, "add an apostille")
	cmd.Flags().BoolVar(&physicalCopy, "physical-copy", false, "add a posted physical copy")
	return cmd
}

func parsePair(from, to string) (domain.LanguagePair, error) {
	pair := domain.LanguagePair{From: strings.ToLower(strings.TrimSpace(from)), To: strings.ToLower(strings.TrimSpace(to))}
	if !pair.Complete() {
		return pair, fmt.Errorf("--from and --to are required")
	}
	if !pair.Valid() {
		return pair, fmt.Errorf("source and target languages must be different")
	}
	return pair, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
