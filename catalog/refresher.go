package catalog

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Refresher reloads the catalog on a fixed interval until its context is
// canceled. The first refresh runs immediately so the snapshot is populated
// before the first tick.
type Refresher struct {
	Service  *Service
	Interval time.Duration
	Logger   glog.Logger
}

func NewRefresher(service *Service, interval time.Duration) (*Refresher, error) {
	if service == nil {
		return nil, fmt.Errorf("catalog: service is required")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Refresher{
		Service:  service,
		Interval: interval,
		Logger:   glog.Ensure(nil),
	}, nil
}

// Run blocks until ctx is canceled.
func (r *Refresher) Run(ctx context.Context) error {
	if r == nil || r.Service == nil {
		return fmt.Errorf("catalog: refresher is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := glog.Ensure(r.Logger)

	if err := r.Service.Refresh(ctx); err != nil {
		logger.Error("initial catalog refresh failed", "error", err.Error())
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Service.Refresh(ctx); err != nil {
				logger.Error("catalog refresh failed", "error", err.Error())
			}
		}
	}
}
