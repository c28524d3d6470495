//go:build integration

package firestore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/finitefield/quote-configurator/internal/domain"
	pconfig "github.com/finitefield/quote-configurator/internal/platform/config"
	pfirestore "github.com/finitefield/quote-configurator/internal/platform/firestore"
	"github.com/finitefield/quote-configurator/internal/repositories"
)

// Run with FIRESTORE_EMULATOR_HOST pointing at a running emulator, for example
// `gcloud beta emulators firestore start --host-port=127.0.0.1:8081`.
func TestSessionRepositoryIntegration(t *testing.T) {
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "quote-integration",
		EmulatorHost: host,
	})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	repo, err := NewSessionRepository(provider, fmt.Sprintf("sessions_%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("new session repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Date(2025, time.April, 2, 9, 30, 0, 0, time.UTC)
	sel := domain.NewSelection()
	sel.Single["projectType"] = "ecommerce"
	sel.Multi["addOns"] = []domain.AddOnSelection{{OptionID: "blog", Quantity: 2}}
	sel.Features["features"] = []domain.FeatureSelection{{
		FeatureID:  "chatbot",
		OptionID:   "advanced",
		SetupPrice: domain.Int64Ptr(1500),
		UsagePrice: nil,
	}}

	session := domain.Session{
		ID: "01JSESSIONINTEGRATION",
		Builders: map[domain.ServiceType]domain.BuilderState{
			"website": {ServiceType: "website", Step: 3, Selection: sel, UpdatedAt: now},
		},
		Quote: []domain.SavedService{{ServiceType: "website", Selection: sel.Clone(), SavedAt: now}},
		Plan:  []domain.PlanLineItem{{ServiceID: "seo", TierID: "standard", AddOnIDs: []string{"local"}}},
		Contact: domain.Contact{
			Name:  "Grace",
			Email: "grace@example.com",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := repo.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(session, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	if err := repo.Delete(ctx, session.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = repo.Get(ctx, session.ID)
	repoErr, ok := err.(repositories.RepositoryError)
	if !ok || !repoErr.IsNotFound() {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
