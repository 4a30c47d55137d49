package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultPartialMaxAge = time.Hour

// Janitor removes spool files left behind by crashed or killed requests.
// Requests clean up after themselves; only a dead process leaves .part files.
type Janitor struct {
	resolver *Resolver
	maxAge   time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewJanitor(resolver *Resolver, maxAge time.Duration, log *zap.Logger) *Janitor {
	if maxAge <= 0 {
		maxAge = DefaultPartialMaxAge
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Janitor{resolver: resolver, maxAge: maxAge, log: log, now: time.Now}
}

func (j *Janitor) Name() string { return "partial-upload-sweep" }

// Run implements cron.Job.
func (j *Janitor) Run() {
	removed, err := j.SweepPartials(j.maxAge)
	if err != nil {
		j.log.Error("partial upload sweep failed", zap.Int("removed", removed), zap.Error(err))
		return
	}
	if removed > 0 {
		j.log.Info("partial uploads removed", zap.Int("removed", removed))
	}
}

// SweepPartials deletes *.part files older than maxAge in every role directory
// and returns how many were removed.
func (j *Janitor) SweepPartials(maxAge time.Duration) (int, error) {
	cutoff := j.now().Add(-maxAge)
	removed := 0
	var errs []error

	for _, p := range j.resolver.policies {
		dir := filepath.Join(j.resolver.root, p.Category)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", dir, err))
			continue
		}

		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), partSuffix) {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
				continue
			}
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// Schedule starts a cron scheduler running the sweep on spec (standard cron
// syntax or descriptors such as "@every 15m"). Stop the returned scheduler on
// shutdown.
func (j *Janitor) Schedule(spec string) (*cron.Cron, error) {
	cronLog := cron.PrintfLogger(zap.NewStdLog(j.log.Named("cron")))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))
	if _, err := c.AddJob(spec, j); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", j.Name(), err)
	}
	c.Start()
	return c, nil
}
