package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// SweepStaleRequests cancels pending requests whose requested date is already
// in the past. Intended to be called periodically by the sweeper worker. Each
// transition is status-guarded, so a request decided between the scan and the
// update is simply skipped.
func (s *Service) SweepStaleRequests(ctx context.Context, today Date) (int, error) {
	stale, err := s.repo.FindStalePending(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("find stale pending requests: %w", err)
	}

	swept := 0
	for _, req := range stale {
		updated, err := s.repo.UpdateRequestStatus(ctx, req.ID, RequestPending, RequestCancelled)
		if err != nil {
			if errors.Is(err, ErrRequestNotFound) {
				continue
			}
			log.Printf("failed to sweep request %s: %v", req.ID, err)
			continue
		}
		swept++
		s.notifier.RequestsChanged(ctx, updated.TherapistID, updated.PatientID)
	}

	return swept, nil
}
