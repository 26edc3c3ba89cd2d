package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
)

// Janitor periodically removes expired refresh tokens. Expired tokens are
// already invisible to lookups, so this only reclaims storage.
type Janitor struct {
	repo     refreshtokens.Repository
	interval time.Duration
	log      logging.Logger
	now      func() time.Time
}

func NewJanitor(repo refreshtokens.Repository, interval time.Duration, log logging.Logger) *Janitor {
	if log == nil {
		log = logging.Nop{}
	}
	return &Janitor{repo: repo, interval: interval, log: log, now: time.Now}
}

// RunOnce purges once and returns the number of removed tokens.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	n, err := j.repo.PurgeExpired(ctx, j.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.log.Info(ctx, "purged expired refresh tokens", "count", n)
	}
	return n, nil
}

// Run purges on every tick until ctx is cancelled. A non-positive interval
// disables the janitor.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		return
	}
	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.log.Error(ctx, "refresh token purge failed", logging.ErrorAttrs(err)...)
			}
		}
	}
}
