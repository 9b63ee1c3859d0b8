package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Cleaner removes regular files older than MaxAge from a set of directories.
// Subdirectories are left alone.
type Cleaner struct {
	Dirs     []string
	MaxAge   time.Duration
	Interval time.Duration
	log      *logrus.Logger
	now      func() time.Time
}

func NewCleaner(log *logrus.Logger, maxAge time.Duration, interval time.Duration, dirs ...string) *Cleaner {
	return &Cleaner{
		Dirs:     dirs,
		MaxAge:   maxAge,
		Interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Run sweeps immediately and then every Interval until ctx is done.
func (c *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		removed, err := c.Sweep()
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Error("Error during cleanup")
		} else {
			c.log.WithFields(logrus.Fields{
				"removed": removed,
			}).Info("Cleanup completed successfully")
		}

		select {
		case <-ctx.Done():
			c.log.Info("Cleanup worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep does a single pass and returns the number of files removed. A missing
// directory is not an error. It keeps going after a failed removal and
// reports the last error seen.
func (c *Cleaner) Sweep() (int, error) {
	cutoff := c.now().Add(-c.MaxAge)
	removed := 0
	var lastErr error

	for _, dir := range c.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			lastErr = err
			continue
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				lastErr = err
				continue
			}

			if !info.ModTime().Before(cutoff) {
				continue
			}

			filePath := filepath.Join(dir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				lastErr = err
				continue
			}

			removed++
			c.log.WithFields(logrus.Fields{
				"file": filePath,
			}).Info("Removed old file")
		}
	}

	return removed, lastErr
}
