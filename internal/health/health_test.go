package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckExtractorBinary_missing(t *testing.T) {
	if err := CheckExtractorBinary("definitely-not-a-real-binary-xyz"); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestCheckExtractorBinary_emptyName(t *testing.T) {
	if err := CheckExtractorBinary(""); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestCheckExtractorBinary_found(t *testing.T) {
	// "go" is guaranteed present in this build/test environment's PATH.
	if err := CheckExtractorBinary("go"); err != nil {
		t.Fatalf("CheckExtractorBinary(go): %v", err)
	}
}

func TestCheckUpstream_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	if err := CheckUpstream(context.Background(), srv.URL); err != nil {
		t.Fatalf("CheckUpstream: %v", err)
	}
}

func TestCheckUpstream_toleratesClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	if err := CheckUpstream(context.Background(), srv.URL); err != nil {
		t.Fatalf("CheckUpstream should tolerate 401: %v", err)
	}
}

func TestCheckUpstream_reportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	if err := CheckUpstream(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 500")
	}
}
