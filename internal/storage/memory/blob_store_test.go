package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "path/books.csv", "text/csv", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://path/books.csv" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	stored, contentType, ok := store.Get("path/books.csv")
	if !ok || string(stored) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	if contentType != "text/csv" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	stored[0] = 'X'
	again, _, _ := store.Get("path/books.csv")
	if string(again) != "content" {
		t.Fatalf("Get must return a copy, got %q", again)
	}
}

func TestBlobStoreOverwrites(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	for _, body := range []string{"one", "two"} {
		if _, err := store.PutObject(context.Background(), "books.csv", "", bytes.NewBufferString(body)); err != nil {
			t.Fatalf("PutObject() error = %v", err)
		}
	}
	got, _, _ := store.Get("books.csv")
	if string(got) != "two" || store.Len() != 1 {
		t.Fatalf("expected single overwritten object, got %q (len %d)", got, store.Len())
	}
	if _, _, ok := store.Get("missing"); ok {
		t.Fatal("expected missing object")
	}
}
