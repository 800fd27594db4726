package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campuspay/student-portal/internal/api"
	"github.com/campuspay/student-portal/internal/model"
)

// ErrAmountNotPositive rejects a zero or negative payment amount.
var ErrAmountNotPositive = errors.New("amount must be greater than 0")

// ErrPaymentPending rejects a second initiation while one confirmation
// window is still open.
var ErrPaymentPending = errors.New("a payment is already awaiting confirmation")

// ErrFeeNotPayable rejects payment against a settled or unknown fee.
var ErrFeeNotPayable = errors.New("fee is not payable")

// AmountExceedsBalanceError rejects an amount above the outstanding balance.
type AmountExceedsBalanceError struct {
	Balance float64
}

func (e *AmountExceedsBalanceError) Error() string {
	return fmt.Sprintf("amount cannot exceed remaining balance of %.2f", e.Balance)
}

// FeeAPI is the slice of the portal API the poller drives.
type FeeAPI interface {
	InitializePayment(ctx context.Context, feeID string, amount float64) (*api.InitializedPayment, error)
	FeeAssignments(ctx context.Context, filter api.FeeFilter) ([]model.FeeAssignment, error)
}

// PollResultMsg carries one confirmation re-fetch outcome. A fetch error
// does not abort the remaining attempts within the window.
type PollResultMsg struct {
	Assignments []model.FeeAssignment
	Err         error
}

// PollAuthErrorMsg is sent when a poll fetch returns 401. The pending
// payment flag is already cleared; the receiver delegates to the session
// manager's forced-logout.
type PollAuthErrorMsg struct {
	Err error
}

// PollFinishedMsg is sent exactly once when the confirmation window closes.
// Reaching it without a terminal status is not an error.
type PollFinishedMsg struct{}

// Poller reconciles an externally confirmed payment by re-fetching the fee
// assignments on a fixed interval for a bounded window. The authoritative
// status arrives out-of-band; a changed status on a fetched snapshot is the
// only payment-outcome signal the client gets.
type Poller struct {
	api      FeeAPI
	log      zerolog.Logger
	interval time.Duration
	window   time.Duration

	mu      sync.Mutex
	pending *model.PendingPayment
	running bool
	stopCh  chan struct{}

	resultCh chan tea.Msg
}

// New creates a confirmation poller. interval is the fixed re-fetch cadence
// and window the hard wall-clock ceiling on the whole poll.
func New(feeAPI FeeAPI, logger zerolog.Logger, interval, window time.Duration) *Poller {
	return &Poller{
		api:      feeAPI,
		log:      logger.With().Str("component", "payment").Logger(),
		interval: interval,
		window:   window,
		resultCh: make(chan tea.Msg, 16),
	}
}

// Initiate validates the amount client-side, calls the initialize-payment
// endpoint, and records the pending-payment flag. Validation failures never
// reach the network. The returned payload carries the external gateway URL
// the student completes the payment on.
func (p *Poller) Initiate(ctx context.Context, fee model.FeeAssignment, amount float64) (*api.InitializedPayment, error) {
	if !fee.Payable() {
		return nil, ErrFeeNotPayable
	}
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}
	if amount > fee.AmountDue {
		return nil, &AmountExceedsBalanceError{Balance: fee.AmountDue}
	}

	p.mu.Lock()
	if p.pending != nil && !p.pending.Expired(time.Now()) {
		p.mu.Unlock()
		return nil, ErrPaymentPending
	}
	p.mu.Unlock()

	initialized, err := p.api.InitializePayment(ctx, fee.Fee.ID, amount)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p.mu.Lock()
	p.pending = &model.PendingPayment{
		ID:          uuid.NewString(),
		FeeID:       fee.Fee.ID,
		Amount:      amount,
		InitiatedAt: now,
		ExpiresAt:   now.Add(p.window),
	}
	p.mu.Unlock()

	p.log.Info().
		Str("fee_id", fee.Fee.ID).
		Float64("amount", amount).
		Msg("payment initiated, confirmation window open")
	return initialized, nil
}

// Pending returns a copy of the active pending payment, if any.
func (p *Poller) Pending() (model.PendingPayment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return model.PendingPayment{}, false
	}
	return *p.pending, true
}

// Active reports whether a non-expired pending payment flag is set.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil && !p.pending.Expired(time.Now())
}

// Start begins the confirmation loop if a live pending payment exists.
// A second Start while the loop is running is a no-op: at most one polling
// timer is active at a time. The returned command subscribes to results.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running || p.pending == nil || p.pending.Expired(time.Now()) {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	deadline := p.pending.ExpiresAt
	stop := p.stopCh
	p.mu.Unlock()

	go p.loop(deadline, stop)
	return p.waitForResult()
}

// Stop halts the polling timer, e.g. when the fee view is torn down. The
// pending flag is kept: re-entering the view within the window resumes.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}

// loop re-fetches until the deadline, then clears the flag unconditionally.
func (p *Poller) loop(deadline time.Time, stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	expire := time.NewTimer(time.Until(deadline))
	defer expire.Stop()

	// First re-fetch happens immediately on (re)entering the view.
	if done := p.fetchOnce(); done {
		return
	}

	for {
		select {
		case <-stop:
			return
		case <-expire.C:
			p.finish()
			return
		case <-ticker.C:
			if done := p.fetchOnce(); done {
				return
			}
		}
	}
}

// fetchOnce performs one confirmation re-fetch. It reports true when the
// loop must end (401 observed).
func (p *Poller) fetchOnce() bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	assignments, err := p.api.FeeAssignments(ctx, api.FeeFilter{})
	if err != nil {
		if api.IsAuthError(err) {
			// A 401 ends the session; the flag is cleared so a later
			// login does not resume a dead window.
			p.log.Warn().Err(err).Msg("confirmation poll unauthorized")
			p.clearPending()
			p.markStopped()
			p.send(PollAuthErrorMsg{Err: err})
			return true
		}
		p.log.Warn().Err(err).Msg("confirmation poll fetch failed")
		p.send(PollResultMsg{Err: err})
		return false
	}

	p.send(PollResultMsg{Assignments: assignments})
	return false
}

// finish closes the window: clears the flag and emits PollFinishedMsg.
func (p *Poller) finish() {
	p.clearPending()
	p.markStopped()
	p.log.Info().Msg("confirmation window closed")
	p.send(PollFinishedMsg{})
}

func (p *Poller) clearPending() {
	p.mu.Lock()
	p.pending = nil
	p.mu.Unlock()
}

func (p *Poller) markStopped() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// send delivers a message without blocking the poll loop.
func (p *Poller) send(msg tea.Msg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if the channel is full rather than stall the loop.
	}
}

// waitForResult returns a command that waits for the next poll message.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return msg
	}
}

// WaitForNextResult re-subscribes after a poll message has been handled.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
