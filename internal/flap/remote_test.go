package flap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRemoteLockCallsModeRed(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRemote(srv.URL)
	defer r.Close()

	ok, err := r.Lock(context.Background(), "test")
	if err != nil || !ok {
		t.Fatalf("Lock = %v, %v; want true, nil", ok, err)
	}
	if got := path.Load(); got != "/mode/red" {
		t.Errorf("Lock hit %v, want /mode/red", got)
	}
}

func TestRemoteStateParsesPlainTextStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("current mode: RED\n"))
	}))
	defer srv.Close()

	r := NewRemote(srv.URL)
	defer r.Close()

	if got := r.State(); got != Locked {
		t.Errorf("State() = %v, want Locked when /status contains RED", got)
	}
}

func TestRemoteUnlockNoOpWhenAlreadyRed(t *testing.T) {
	var modeCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			w.Write([]byte("RED"))
		case "/mode/green", "/mode/yellow":
			atomic.AddInt32(&modeCalls, 1)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	r := NewRemote(srv.URL)
	defer r.Close()

	ok, err := r.Unlock(context.Background(), "test")
	if err != nil {
		t.Fatalf("Unlock error: %v", err)
	}
	if ok {
		t.Error("Unlock reported success while status was RED, want no-op")
	}
	time.Sleep(10 * time.Millisecond)
	if atomic.LoadInt32(&modeCalls) != 0 {
		t.Errorf("Unlock issued %d mode changes while already RED, want 0", modeCalls)
	}
}
