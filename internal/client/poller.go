package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seenlim/docchat/internal/model"
)

// ErrFetchFailed marks a status fetch that ended the poll loop. The
// poller never retries after a failed fetch; resuming is the caller's
// call.
var ErrFetchFailed = errors.New("fetch document status")

const DefaultPollInterval = 2 * time.Second

type FetchStatusFunc func(ctx context.Context, documentID int64) (*model.DocumentStatus, error)

// StatusPoller polls a document's processing status at a fixed interval
// until it turns terminal (processed or error), a fetch fails, or Stop
// is called. At most one fetch is in flight at a time; the next one is
// scheduled only after the previous resolves.
type StatusPoller struct {
	cancel context.CancelFunc
	done   chan struct{}

	status *model.DocumentStatus
	err    error
}

// StartStatusPoller begins polling immediately and returns a handle.
// onTerminal fires exactly once with the terminal status; onError fires
// exactly once if a fetch fails. Neither fires after Stop.
func StartStatusPoller(documentID int64, fetch FetchStatusFunc, onTerminal func(*model.DocumentStatus), onError func(error), interval time.Duration) *StatusPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &StatusPoller{cancel: cancel, done: make(chan struct{})}
	go p.loop(ctx, documentID, fetch, onTerminal, onError, interval)
	return p
}

func (p *StatusPoller) loop(ctx context.Context, documentID int64, fetch FetchStatusFunc, onTerminal func(*model.DocumentStatus), onError func(error), interval time.Duration) {
	defer close(p.done)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		status, err := fetch(ctx, documentID)
		// A Stop racing an in-flight fetch wins: its result is dropped.
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
			if onError != nil {
				onError(p.err)
			}
			return
		}
		if model.IsTerminalStatus(status.Status) {
			p.status = status
			if onTerminal != nil {
				onTerminal(status)
			}
			return
		}
		timer.Reset(interval)
	}
}

// Stop cancels the poll loop and waits for it to wind down. After Stop
// returns, no further fetch happens and no callback fires.
func (p *StatusPoller) Stop() {
	p.cancel()
	<-p.done
}

// Wait blocks until the poller finishes on its own or ctx ends, in
// which case the poller is stopped before returning.
func (p *StatusPoller) Wait(ctx context.Context) (*model.DocumentStatus, error) {
	select {
	case <-ctx.Done():
		p.Stop()
		return nil, ctx.Err()
	case <-p.done:
		return p.status, p.err
	}
}
