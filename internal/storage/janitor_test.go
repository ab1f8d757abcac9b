package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"reflect"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeStore struct {
	deleteErr map[string]error
	deleted   []string
}

func (f *fakeStore) NewPath(filename string) string { return "attachments/" + filename }

func (f *fakeStore) Put(context.Context, string, io.Reader) error {
	return errors.New("not used")
}

func (f *fakeStore) Delete(_ context.Context, p string) error {
	if err := f.deleteErr[p]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, p)
	return nil
}

type memLedger struct{ paths map[string]time.Time }

func newMemLedger() *memLedger { return &memLedger{paths: map[string]time.Time{}} }

func (l *memLedger) Add(_ context.Context, at time.Time, paths ...string) error {
	for _, p := range paths {
		if _, ok := l.paths[p]; !ok {
			l.paths[p] = at
		}
	}
	return nil
}

func (l *memLedger) Due(_ context.Context, before time.Time) ([]string, error) {
	var out []string
	for p, at := range l.paths {
		if !at.After(before) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (l *memLedger) Remove(_ context.Context, paths ...string) error {
	for _, p := range paths {
		delete(l.paths, p)
	}
	return nil
}

type memRetries struct{ counts map[string]int64 }

func (r *memRetries) IncrementAndGet(_ context.Context, key string) (int64, error) {
	r.counts[key]++
	return r.counts[key], nil
}

func (r *memRetries) Reset(_ context.Context, key string) error {
	delete(r.counts, key)
	return nil
}

type fakeRefs map[string]bool

func (f fakeRefs) AttachmentReferenced(_ context.Context, p string) (bool, error) {
	return f[p], nil
}

func busy(p string) error {
	return &fs.PathError{Op: "remove", Path: p, Err: errors.New("device busy")}
}

var epoch = time.Date(2024, 10, 22, 12, 0, 0, 0, time.UTC)

func newTestJanitor(store *fakeStore, ledger *memLedger, refs fakeRefs, retries *memRetries, maxTries int64) *Janitor {
	j := NewJanitor(store, ledger, refs, retries, JanitorConfig{MaxTries: maxTries, Grace: 10 * time.Minute}, zap.NewNop())
	j.now = func() time.Time { return epoch }
	return j
}

func TestTrackAndRelease(t *testing.T) {
	ledger := newMemLedger()
	j := newTestJanitor(&fakeStore{}, ledger, fakeRefs{}, &memRetries{counts: map[string]int64{}}, 3)
	ctx := context.Background()

	if err := j.Track(ctx, []string{"attachments/a.pdf", "attachments/b.pdf"}); err != nil {
		t.Fatal(err)
	}
	if at := ledger.paths["attachments/a.pdf"]; !at.Equal(epoch) || len(ledger.paths) != 2 {
		t.Fatalf("ledger = %v", ledger.paths)
	}
	if err := j.Release(ctx, []string{"attachments/a.pdf", "attachments/b.pdf"}); err != nil {
		t.Fatal(err)
	}
	if len(ledger.paths) != 0 {
		t.Fatalf("ledger after release = %v", ledger.paths)
	}
}

func TestDiscardKeepsFailuresTracked(t *testing.T) {
	store := &fakeStore{deleteErr: map[string]error{"attachments/b.pdf": busy("b")}}
	ledger := newMemLedger()
	j := newTestJanitor(store, ledger, fakeRefs{}, &memRetries{counts: map[string]int64{}}, 3)

	paths := []string{"attachments/a.pdf", "attachments/b.pdf", "attachments/c.pdf"}
	if err := j.Track(context.Background(), paths); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	left := j.Discard(ctx, paths)

	if !reflect.DeepEqual(left, []string{"attachments/b.pdf"}) {
		t.Fatalf("left = %v", left)
	}
	if !reflect.DeepEqual(store.deleted, []string{"attachments/a.pdf", "attachments/c.pdf"}) {
		t.Fatalf("deleted = %v", store.deleted)
	}
	if _, ok := ledger.paths["attachments/b.pdf"]; !ok || len(ledger.paths) != 1 {
		t.Fatalf("ledger = %v", ledger.paths)
	}
}

func TestRunOnceReconcilesAndAbandons(t *testing.T) {
	store := &fakeStore{deleteErr: map[string]error{
		"attachments/busy.pdf":   busy("busy"),
		"attachments/denied.pdf": fmt.Errorf("remove: %w", fs.ErrPermission),
	}}
	ledger := newMemLedger()
	_ = ledger.Add(context.Background(), epoch.Add(-time.Hour), "attachments/ok.pdf", "attachments/busy.pdf", "attachments/denied.pdf")
	retries := &memRetries{counts: map[string]int64{}}
	j := newTestJanitor(store, ledger, fakeRefs{}, retries, 2)

	reconciled, abandoned, err := j.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reconciled != 1 || abandoned != 1 {
		t.Fatalf("first pass: reconciled=%d abandoned=%d", reconciled, abandoned)
	}
	if _, ok := ledger.paths["attachments/busy.pdf"]; !ok || len(ledger.paths) != 1 {
		t.Fatalf("ledger after first pass = %v", ledger.paths)
	}

	_, abandoned, err = j.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if abandoned != 1 || len(ledger.paths) != 0 {
		t.Fatalf("second pass: abandoned=%d ledger=%v", abandoned, ledger.paths)
	}
	if len(retries.counts) != 0 {
		t.Errorf("retry counters not reset: %v", retries.counts)
	}
}

// A process that dies between writing a file and committing leaves the path
// tracked. The sweep deletes it once the grace period has passed, and keeps
// files a committed note turned out to own.
func TestRunOnceSweepsUncommittedWritesAfterGrace(t *testing.T) {
	store := &fakeStore{}
	ledger := newMemLedger()
	ctx := context.Background()
	_ = ledger.Add(ctx, epoch.Add(-11*time.Minute), "attachments/crashed.pdf", "attachments/committed.pdf")
	_ = ledger.Add(ctx, epoch.Add(-time.Minute), "attachments/in-flight.pdf")
	j := newTestJanitor(store, ledger, fakeRefs{"attachments/committed.pdf": true}, &memRetries{counts: map[string]int64{}}, 3)

	reconciled, abandoned, err := j.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if reconciled != 1 || abandoned != 0 {
		t.Fatalf("reconciled=%d abandoned=%d", reconciled, abandoned)
	}
	if !reflect.DeepEqual(store.deleted, []string{"attachments/crashed.pdf"}) {
		t.Fatalf("deleted = %v", store.deleted)
	}
	if _, ok := ledger.paths["attachments/in-flight.pdf"]; !ok || len(ledger.paths) != 1 {
		t.Fatalf("ledger = %v", ledger.paths)
	}
}
