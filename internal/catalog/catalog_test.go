package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requests.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeCatalog(t, "request_id,text_speaker,request_text\n1,Joanna,Hello there\n2,Matthew,\"Second, with comma\"\n")
	requests, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	if requests[0].ID != "1" || requests[0].Speaker != "Joanna" || requests[0].Text != "Hello there" {
		t.Fatalf("unexpected first request: %+v", requests[0])
	}
	if requests[1].Text != "Second, with comma" {
		t.Fatalf("quoted text not preserved: %q", requests[1].Text)
	}
}

func TestLoadRejectsBadHeader(t *testing.T) {
	path := writeCatalog(t, "id,voice,text\n1,Joanna,Hello\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unexpected header")
	}
}

func TestLoadRejectsEmptyText(t *testing.T) {
	path := writeCatalog(t, "request_id,text_speaker,request_text\n1,Joanna,\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty request text")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}
