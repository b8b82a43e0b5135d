package gcsuploader

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/a/b.csv", "bucket", "a/b.csv", false},
		{"gs://bucket/*.csv", "bucket", "*.csv", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"s3://bucket/a", "", "", true},
		{"/local/path.csv", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	if got := ExtractFilenameFromGCSURI("gs://bucket/folder/file.csv"); got != "file.csv" {
		t.Errorf("got %q, want file.csv", got)
	}
	if got := ExtractFilenameFromGCSURI("gs://bucket"); got != "bucket" {
		t.Errorf("got %q, want bucket", got)
	}
}

func TestGlobPrefix(t *testing.T) {
	tests := map[string]string{
		"reports/targeting/*.csv": "reports/targeting/",
		"reports/tr_2024-0?.csv":  "reports/tr_2024-0",
		"exact/file.csv":          "exact/file.csv",
		"*":                       "",
	}
	for glob, want := range tests {
		if got := globPrefix(glob); got != want {
			t.Errorf("globPrefix(%q) = %q, want %q", glob, got, want)
		}
	}
}

func TestMatchObjects(t *testing.T) {
	names := []string{
		"reports/targeting/b.csv",
		"reports/targeting/a.csv",
		"reports/targeting/old/c.csv",
		"reports/targeting/notes.txt",
	}
	got := matchObjects("bkt", "reports/targeting/*.csv", names)
	want := []string{"gs://bkt/reports/targeting/a.csv", "gs://bkt/reports/targeting/b.csv"}

	if len(got) != len(want) {
		t.Fatalf("matchObjects() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("matchObjects()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestObjectName(t *testing.T) {
	rel := filepath.Join("2024.01.01_2024.01.31", "Group", "kw.png")
	if got := ObjectName("charts", rel); got != "charts/2024.01.01_2024.01.31/Group/kw.png" {
		t.Errorf("ObjectName() = %q", got)
	}
	if got := ObjectName("", rel); got != "2024.01.01_2024.01.31/Group/kw.png" {
		t.Errorf("ObjectName() without prefix = %q", got)
	}
}

func TestRelativeFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "2024.01.01_2024.01.02")
	for _, p := range []string{"A/k1.png", "B/k2.png"} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := relativeFiles(root, dir)
	if err != nil {
		t.Fatalf("relativeFiles() error = %v", err)
	}
	want := []string{
		filepath.Join("2024.01.01_2024.01.02", "A", "k1.png"),
		filepath.Join("2024.01.01_2024.01.02", "B", "k2.png"),
	}
	if len(files) != len(want) {
		t.Fatalf("relativeFiles() = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("relativeFiles()[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("a/kw.PNG"); got != "image/png" {
		t.Errorf("contentType(png) = %q", got)
	}
	if got := contentType("kw.jpeg"); got != "image/jpeg" {
		t.Errorf("contentType(jpeg) = %q", got)
	}
}
