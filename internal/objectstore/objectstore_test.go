package objectstore

import (
	"context"
	"strings"
	"testing"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("signatures", "firma.png")
	if !strings.HasPrefix(key, "signatures/firma-") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("key = %q", key)
	}

	other := ObjectKey("signatures", "firma.png")
	if key == other {
		t.Fatal("keys must not collide for the same file name")
	}

	if key := ObjectKey("proofs", ".hidden"); !strings.HasPrefix(key, "proofs/upload-") {
		t.Fatalf("extension-only name key = %q", key)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	url, err := store.Upload(context.Background(), "proofs", "recibo.pdf", "application/pdf", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(url, "mem://proofs/") {
		t.Fatalf("url = %q", url)
	}
	data, ok := store.Get(url)
	if !ok || string(data) != "payload" {
		t.Fatalf("Get = %q, %v", data, ok)
	}
}
