package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/quotedesk/checkout/internal/domain"
)

func TestCachedResolverCachesLanguagesOnly(t *testing.T) {
	resolver, err := NewCachedResolver(NewStatic(), time.Minute, nil)
	if err != nil {
		t.Fatalf("NewCachedResolver returned error: %v", err)
	}
	ctx := context.Background()

	first, err := resolver.ListLanguages(ctx)
	if err != nil {
		t.Fatalf("ListLanguages returned error: %v", err)
	}
	first[0] = "mutated"
	second, err := resolver.ListLanguages(ctx)
	if err != nil {
		t.Fatalf("ListLanguages returned error: %v", err)
	}
	if second[0] == "mutated" {
		t.Fatalf("expected cached list to be copied on read")
	}

	certs, err := resolver.ListCertifications(ctx, domain.ServiceTierProfessional, domain.LanguagePair{From: "english", To: "french"})
	if err != nil || len(certs.Options) == 0 {
		t.Fatalf("unexpected certifications %+v err=%v", certs, err)
	}
	quote, err := resolver.GetPricing(ctx, domain.LanguagePair{From: "english", To: "french"}, domain.PriorityNormal, "standard")
	if err != nil || quote.PricePerPage.String() != "10" {
		t.Fatalf("unexpected quote %+v err=%v", quote, err)
	}
}

func TestNewCachedResolverRequiresBackend(t *testing.T) {
	if _, err := NewCachedResolver(nil, time.Minute, nil); err == nil {
		t.Fatalf("expected error for nil backend")
	}
}
