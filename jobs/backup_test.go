package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestUploadBackupCopiesAndPrunes(t *testing.T) {
	root := t.TempDir()
	dir := t.TempDir()
	writeFile(t, filepath.Join(root, "products", "a.jpg"), "image-a")
	writeFile(t, filepath.Join(root, "banners", "b.png"), "image-b")

	now := time.Date(2026, 3, 10, 2, 0, 0, 0, time.Local)
	old := filepath.Join(dir, backupPrefix+now.Add(-5*24*time.Hour).Format(backupLayout))
	recent := filepath.Join(dir, backupPrefix+now.Add(-24*time.Hour).Format(backupLayout))
	unrelated := filepath.Join(dir, "keep-me")
	for _, d := range []string{old, recent, unrelated} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	b := &UploadBackup{Root: root, Dir: dir, Retention: 4 * 24 * time.Hour, now: func() time.Time { return now }}
	dst, err := b.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "products", "a.jpg"))
	if err != nil || string(got) != "image-a" {
		t.Errorf("products/a.jpg = %q, %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(dst, "banners", "b.png")); err != nil {
		t.Errorf("banners/b.png missing: %v", err)
	}

	tests := []struct {
		path   string
		exists bool
	}{
		{old, false},
		{recent, true},
		{unrelated, true},
	}
	for _, tt := range tests {
		_, err := os.Stat(tt.path)
		if exists := err == nil; exists != tt.exists {
			t.Errorf("%s exists = %v, want %v", filepath.Base(tt.path), exists, tt.exists)
		}
	}
}

func TestUploadBackupMissingRoot(t *testing.T) {
	dir := t.TempDir()
	b := &UploadBackup{Root: filepath.Join(dir, "missing"), Dir: filepath.Join(dir, "out")}
	if _, err := b.Run(); err == nil {
		t.Fatal("Run succeeded without an upload root")
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	if _, err := Scheduler(&UploadBackup{}, "not a schedule"); err == nil {
		t.Fatal("expected an error for an invalid schedule")
	}
	sched, err := Scheduler(&UploadBackup{}, "@daily")
	if err != nil {
		t.Fatalf("Scheduler: %v", err)
	}
	sched.Stop()
}
