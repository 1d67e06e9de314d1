package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	osfs := OSFileSystem{}

	if !osfs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if osfs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_CreateAndRead(t *testing.T) {
	osfs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "out", "charts")

	if err := osfs.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	path := filepath.Join(dir, "counts.html")
	w, err := osfs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := io.WriteString(w, "<html></html>"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	f, err := osfs.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "<html></html>" {
		t.Errorf("got %q", data)
	}
}

func TestMemoryFileSystem_AddAndOpen(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.Add("replays/day1.jsonl", []byte("{\"frame\":0}\n"))

	f, err := mfs.Open("replays/day1.jsonl")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "day1.jsonl" || info.Size() != 12 || info.IsDir() {
		t.Errorf("unexpected info: name=%s size=%d dir=%v", info.Name(), info.Size(), info.IsDir())
	}
	data, _ := io.ReadAll(f)
	if string(data) != "{\"frame\":0}\n" {
		t.Errorf("got %q", data)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if !mfs.Exists("replays") {
		t.Error("expected parent directory to exist")
	}
}

func TestMemoryFileSystem_OpenMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.Open("missing.jsonl")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/counts.png")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("png")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if mfs.Exists("/counts.png") {
		t.Error("file should not exist before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := mfs.ReadFile("/counts.png")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "png" {
		t.Errorf("got %q", data)
	}

	if _, err := w.Write([]byte("x")); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("expected fs.ErrClosed after close, got %v", err)
	}
	if err := w.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("expected fs.ErrClosed on second close, got %v", err)
	}
}

func TestMemoryFileSystem_CreateNeedsParent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Create("out/counts.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	if err := mfs.MkdirAll("out", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if _, err := mfs.Create("out/counts.png"); err != nil {
		t.Errorf("Create after MkdirAll failed: %v", err)
	}
}

func TestMemoryFileSystem_MkdirAllOverFile(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.Add("out", []byte("x"))

	if err := mfs.MkdirAll("out/charts", 0o755); !errors.Is(err, fs.ErrExist) {
		t.Errorf("expected fs.ErrExist, got %v", err)
	}
}

func TestMemoryFileSystem_ReadFileIsCopy(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.Add("a.txt", []byte("abc"))

	data, _ := mfs.ReadFile("a.txt")
	data[0] = 'z'
	again, _ := mfs.ReadFile("a.txt")
	if string(again) != "abc" {
		t.Errorf("stored data was mutated: %q", again)
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.Add("out/a.png", nil)
	mfs.Add("out/b.html", nil)
	mfs.Add("in/c.jsonl", nil)

	got := mfs.Files("out/")
	sort.Strings(got)
	if len(got) != 2 || got[0] != "out/a.png" || got[1] != "out/b.html" {
		t.Errorf("unexpected files: %v", got)
	}
}
