package loader

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func TestWorkerRunsJob(t *testing.T) {
	w := NewWorker(4)
	defer w.Shutdown()

	results := make(chan Result, 1)
	w.Submit(Job{
		Name: "asset.bin",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte("hello"))), nil
		},
		Result: results,
	})

	select {
	case r := <-results:
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
		if string(r.Data) != "hello" {
			t.Fatalf("got %q want %q", r.Data, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestWorkerPropagatesOpenError(t *testing.T) {
	w := NewWorker(1)
	defer w.Shutdown()

	wantErr := errors.New("boom")
	results := make(chan Result, 1)
	w.Submit(Job{
		Name:   "broken",
		Open:   func() (io.ReadCloser, error) { return nil, wantErr },
		Result: results,
	})

	r := <-results
	if r.Err != wantErr {
		t.Fatalf("got err %v want %v", r.Err, wantErr)
	}
}

func TestShutdownDrainsQueuedJobs(t *testing.T) {
	w := NewWorker(8)
	results := make(chan Result, 1)
	w.Submit(Job{
		Name:   "queued",
		Open:   func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(nil)), nil },
		Result: results,
	})
	w.Shutdown()

	select {
	case r := <-results:
		if r.Err != nil && r.Err != ErrShutdown {
			t.Fatalf("unexpected error: %v", r.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
}
