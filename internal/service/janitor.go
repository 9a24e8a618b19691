package service

import (
	"context"
	"time"

	"github.com/fjod/storefront-checkout/domain"
)

// RunJanitor periodically sweeps idle and unarchived sessions until ctx is done.
func (s *CheckoutServiceImpl) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep abandons sessions idle for longer than the idle TTL and retries the
// archive write of finished sessions still held in memory. It returns the
// number of sessions it removed.
func (s *CheckoutServiceImpl) Sweep(ctx context.Context) int {
	s.mu.RLock()
	candidates := make(map[string]*Orchestrator, len(s.sessions))
	for id, o := range s.sessions {
		candidates[id] = o
	}
	s.mu.RUnlock()

	now := s.clock.Now()
	for id, o := range candidates {
		res := o.Snapshot()
		switch {
		case res.State == domain.StateCompleted:
			s.finish(ctx, id, res, domain.ArchiveStatusCompleted)
		case o.IsClosed():
			s.finish(ctx, id, res, domain.ArchiveStatusAbandoned)
		case s.idleTTL > 0 && now.Sub(res.Session.UpdatedAt) > s.idleTTL:
			abandoned, err := o.Abandon()
			if err != nil {
				continue
			}
			s.finish(ctx, id, abandoned, domain.ArchiveStatusAbandoned)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	removed := 0
	for id := range candidates {
		if _, ok := s.sessions[id]; !ok {
			removed++
		}
	}
	return removed
}
