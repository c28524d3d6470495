//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	pconfig "github.com/finitefield/quote-configurator/internal/platform/config"
	pfirestore "github.com/finitefield/quote-configurator/internal/platform/firestore"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

type counterEntity struct {
	Label string `firestore:"label"`
	Hits  int    `firestore:"hits"`
}

func TestProviderAndRepositoryAgainstEmulator(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	defer stopContainer(containerID)
	waitForEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "quote-test", EmulatorHost: endpoint})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := provider.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	repo := pfirestore.NewBaseRepository[counterEntity](provider, "counters")
	if _, err := repo.Set(ctx, "c-1", counterEntity{Label: "quotes", Hits: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}

	doc, err := repo.Get(ctx, "c-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID != "c-1" || doc.Data.Label != "quotes" || doc.Data.Hits != 1 {
		t.Fatalf("unexpected document %#v", doc)
	}
	if doc.UpdateTime.IsZero() {
		t.Fatalf("expected update time")
	}

	err = provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := repo.DocumentRef(ctx, "c-1")
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := pfirestore.DecodeSnapshot[counterEntity](snap)
		if err != nil {
			return err
		}
		current.Data.Hits++
		return tx.Set(ref, current.Data)
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if doc, err = repo.Get(ctx, "c-1"); err != nil || doc.Data.Hits != 2 {
		t.Fatalf("expected hits=2 after transaction, got %#v (err=%v)", doc.Data, err)
	}

	if err := repo.Delete(ctx, "c-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = repo.Get(ctx, "c-1")
	type notFoundClassifier interface{ IsNotFound() bool }
	var cls notFoundClassifier
	if !errors.As(err, &cls) || !cls.IsNotFound() {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	if err := provider.RunTransaction(cancelled, func(context.Context, *firestore.Transaction) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		lastErr = err
		time.Sleep(250 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for endpoint")
	}
	t.Fatalf("emulator did not become ready: %v", lastErr)
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}
}
