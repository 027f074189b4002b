package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/fleetconsole/internal/api"
)

// SyncState represents the current state of the refresh loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the outcome of the most recent refresh.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// RefreshResultMsg is a tea.Msg sent when a refresh completes.
type RefreshResultMsg struct {
	Error     error
	AuthError *AuthErrorMsg
	At        time.Time
}

// AuthErrorMsg is a tea.Msg sent when the backend rejects the token.
type AuthErrorMsg struct {
	Message string
}

// Refresher is anything that can reconcile itself with the backend.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 30 * time.Second

// refreshTimeout bounds a single refresh. It is derived from
// context.Background so stopping the poller does not abort a request already
// on the wire; the store discards its result instead.
const refreshTimeout = 30 * time.Second

// Poller refreshes a Refresher on a fixed interval while a view is mounted.
type Poller struct {
	target   Refresher
	interval time.Duration
	now      func() time.Time
	log      *logrus.Entry

	triggerCh chan struct{}
	current   *run

	mu      gosync.Mutex
	running bool
	status  SyncStatus
}

// run is one Start-to-Stop lifetime of the loop. Each run owns its result
// channel.
type run struct {
	stop    chan struct{}
	results chan RefreshResultMsg
}

func newRun() *run {
	return &run{
		stop:    make(chan struct{}),
		results: make(chan RefreshResultMsg, 16),
	}
}

// New creates a stopped poller for target.
func New(target Refresher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		target:    target,
		interval:  interval,
		now:       time.Now,
		log:       logrus.WithField("component", "poller"),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the loop with an immediate first refresh and returns a
// tea.Cmd that delivers the next RefreshResultMsg. Calling Start on a running
// poller returns nil.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	r := newRun()
	p.current = r
	p.mu.Unlock()

	go p.loop(r)
	return p.waitForResult(r)
}

// Stop halts the loop. A refresh in flight runs to completion but its result
// is not delivered.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	close(p.current.stop)
	p.running = false
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RefreshNow asks the loop for an immediate refresh. It never blocks; a
// request already pending absorbs this one.
func (p *Poller) RefreshNow() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the outcome of the most recent refresh.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop(r *run) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.refresh(r)

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			p.refresh(r)
		case <-p.triggerCh:
			p.refresh(r)
		}
	}
}

func (p *Poller) refresh(r *run) {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	err := p.target.Refresh(ctx)
	at := p.now()

	select {
	case <-r.stop:
		p.log.Debug("refresh finished after stop, dropping result")
		return
	default:
	}

	if err != nil {
		p.setStatus(SyncError, err)
		msg := RefreshResultMsg{Error: err, At: at}
		if api.IsAuthError(err) {
			msg.AuthError = &AuthErrorMsg{
				Message: "Session expired. Press 'c' to enter a new token.",
			}
		}
		p.sendResult(r, msg)
		return
	}

	p.setStatus(SyncIdle, nil)
	p.sendResult(r, RefreshResultMsg{At: at})
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle {
		p.status.LastSync = p.now()
	}
}

// sendResult delivers msg to the run that produced it without blocking. A
// stopped run's channel has no reader left, so a result that raced Stop
// never reaches a later run.
func (p *Poller) sendResult(r *run, msg RefreshResultMsg) {
	select {
	case <-r.stop:
		return
	default:
	}
	select {
	case r.results <- msg:
	default:
		p.log.Warn("result channel full, dropping refresh result")
	}
}

func (p *Poller) waitForResult(r *run) tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-r.results:
			return result
		case <-r.stop:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next refresh result.
// Call it after handling a RefreshResultMsg to keep listening. It yields nil
// once the poller is stopped.
func (p *Poller) WaitForNextResult() tea.Cmd {
	p.mu.Lock()
	r := p.current
	running := p.running
	p.mu.Unlock()

	if !running {
		return nil
	}
	return p.waitForResult(r)
}
