package widget

import (
	"context"
	"time"

	"bonus-hunt/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// StateFetcher loads the authoritative state of a hunt.
type StateFetcher interface {
	GetHuntState(ctx context.Context, huntID uuid.UUID) (*models.HuntStateResponse, error)
}

// Notifier receives hunt change signals.
type Notifier interface {
	Notify(huntID uuid.UUID) int
}

const sharedFetchTimeout = 10 * time.Second

// SharedFetcher collapses concurrent reloads of one hunt into a single
// store read. It sits in front of the broadcaster: every Notify forgets the
// hunt's in-flight read before forwarding, so a reload triggered by a change
// never joins a read that started before that change. It keeps no per-hunt
// state once a read finishes.
type SharedFetcher struct {
	fetcher StateFetcher
	next    Notifier
	group   singleflight.Group
}

func NewSharedFetcher(fetcher StateFetcher, next Notifier) *SharedFetcher {
	return &SharedFetcher{
		fetcher: fetcher,
		next:    next,
	}
}

// GetHuntState implements StateFetcher.
func (f *SharedFetcher) GetHuntState(ctx context.Context, huntID uuid.UUID) (*models.HuntStateResponse, error) {
	key := huntID.String()

	ch := f.group.DoChan(key, func() (interface{}, error) {
		// Detached so one viewer hanging up does not fail the others.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return f.fetcher.GetHuntState(fctx, huntID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.HuntStateResponse), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify implements services.Notifier.
func (f *SharedFetcher) Notify(huntID uuid.UUID) int {
	// Callers already waiting keep their result; later ones start over.
	f.group.Forget(huntID.String())

	if f.next == nil {
		return 0
	}
	return f.next.Notify(huntID)
}
