// Package jobs runs scheduled maintenance tasks.
package jobs

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	backupPrefix = "uploads_"
	backupLayout = "20060102_150405"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// UploadBackup copies the local upload root into timestamped folders and
// removes folders older than the retention.
type UploadBackup struct {
	Root      string
	Dir       string
	Retention time.Duration

	now func() time.Time
}

// Scheduler starts a cron scheduler running b on schedule.
func Scheduler(b *UploadBackup, schedule string) (*cron.Cron, error) {
	sched := cron.New(cron.WithParser(cronParser))
	if _, err := sched.AddFunc(schedule, b.runLogged); err != nil {
		return nil, errors.Wrapf(err, "invalid backup schedule %q", schedule)
	}
	sched.Start()
	return sched, nil
}

func (b *UploadBackup) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

func (b *UploadBackup) runLogged() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	dst, err := b.Run()
	if err != nil {
		zap.L().Error("upload backup failed", zap.Error(err))
		return
	}
	zap.L().Info("upload backup written", zap.String("dir", dst))
}

// Run writes one backup and prunes expired ones. It returns the new folder.
func (b *UploadBackup) Run() (string, error) {
	now := b.clock()
	dst := filepath.Join(b.Dir, backupPrefix+now.Format(backupLayout))
	if err := copyTree(b.Root, dst); err != nil {
		_ = os.RemoveAll(dst)
		return "", err
	}
	if err := b.prune(now); err != nil {
		zap.L().Warn("backup pruning failed", zap.Error(err))
	}
	return dst, nil
}

func (b *UploadBackup) prune(now time.Time) error {
	if b.Retention <= 0 {
		return nil
	}
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		return errors.Wrap(err, "list backups")
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) {
			continue
		}
		taken, err := time.ParseInLocation(backupLayout, strings.TrimPrefix(e.Name(), backupPrefix), now.Location())
		if err != nil {
			continue
		}
		if now.Sub(taken) > b.Retention {
			if err := os.RemoveAll(filepath.Join(b.Dir, e.Name())); err != nil {
				return errors.Wrapf(err, "remove backup %s", e.Name())
			}
			zap.L().Debug("backup pruned", zap.String("name", e.Name()))
		}
	}
	return nil
}

// copyTree copies regular files below src into dst. Symlinks are skipped.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			return copyFile(p, target)
		}
		return nil
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open source")
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "create backup file")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copy %s", src)
	}
	return out.Close()
}
