package airgap

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// flipProbe reports the value of an atomic flag so tests can flip connectivity
// while a wait is in progress.
type flipProbe struct {
	online int32
}

func (p *flipProbe) probe(ctx context.Context) bool {
	return atomic.LoadInt32(&p.online) != 0
}

func (p *flipProbe) set(online bool) {
	if online {
		atomic.StoreInt32(&p.online, 1)
	} else {
		atomic.StoreInt32(&p.online, 0)
	}
}

func writeKeyFile(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "issuing.key")
	if err := ioutil.WriteFile(path, []byte("L1aW4aubDFB7yfras2S1mN3bqg9nwySY8nkoLmJebSLD5BWv3ENZ\n"),
		0600); err != nil {
		t.Fatalf("write key : %s", err)
	}
	return path
}

func TestWaitOffline(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	keyPath := writeKeyFile(t, dir)

	probe := &flipProbe{}
	probe.set(false)

	checker := NewPollingChecker(probe.probe, keyPath, time.Millisecond)

	// Offline and key present, the wait returns immediately.
	if err := checker.WaitOffline(ctx); err != nil {
		t.Fatalf("wait offline : %s", err)
	}
}

func TestWaitOffline_BlocksWhileOnline(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	keyPath := writeKeyFile(t, dir)

	probe := &flipProbe{}
	probe.set(true)

	checker := NewPollingChecker(probe.probe, keyPath, time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- checker.WaitOffline(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("returned while online : %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	probe.set(false)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait offline : %s", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("did not return after going offline")
	}
}

func TestWaitOffline_RequiresKeySource(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	probe := &flipProbe{}
	probe.set(false)

	checker := NewPollingChecker(probe.probe, "/nonexistent/issuing.key", time.Millisecond)

	// Offline but no key source, the wait must not complete.
	if err := checker.WaitOffline(ctx); err == nil {
		t.Fatalf("returned without a key source")
	}
}

func TestWaitOnline(t *testing.T) {
	ctx := context.Background()

	probe := &flipProbe{}
	probe.set(true)

	// Key path that does not exist stands in for the removed key source.
	checker := NewPollingChecker(probe.probe, "/nonexistent/issuing.key", time.Millisecond)

	if err := checker.WaitOnline(ctx); err != nil {
		t.Fatalf("wait online : %s", err)
	}
}

func TestWaitOnline_BlocksWhileKeyPresent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	keyPath := writeKeyFile(t, dir)

	probe := &flipProbe{}
	probe.set(true)

	checker := NewPollingChecker(probe.probe, keyPath, time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- checker.WaitOnline(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("returned while key source attached : %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	if err := os.Remove(keyPath); err != nil {
		t.Fatalf("remove key : %s", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait online : %s", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("did not return after key removal")
	}
}

func TestChecker_Skip(t *testing.T) {
	ctx := context.Background()

	probe := &flipProbe{}
	probe.set(true)

	checker := NewPollingChecker(probe.probe, "/nonexistent/issuing.key", time.Millisecond)
	checker.Skip = true

	// With the check skipped both waits pass regardless of state.
	if err := checker.WaitOffline(ctx); err != nil {
		t.Fatalf("wait offline : %s", err)
	}
	if err := checker.WaitOnline(ctx); err != nil {
		t.Fatalf("wait online : %s", err)
	}
}

func TestImportKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeKeyFile(t, dir)

	key, err := ImportKey(keyPath)
	if err != nil {
		t.Fatalf("import : %s", err)
	}
	if key != "L1aW4aubDFB7yfras2S1mN3bqg9nwySY8nkoLmJebSLD5BWv3ENZ" {
		t.Errorf("got %q", key)
	}

	if _, err := ImportKey(filepath.Join(dir, "missing.key")); err == nil {
		t.Errorf("missing file imported")
	}

	empty := filepath.Join(dir, "empty.key")
	if err := ioutil.WriteFile(empty, []byte("  \n"), 0600); err != nil {
		t.Fatalf("write empty : %s", err)
	}
	if _, err := ImportKey(empty); err == nil {
		t.Errorf("empty file imported")
	}
}
