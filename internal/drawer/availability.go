package drawer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jetsetgo/till-bridge/internal/tray"
)

// State is the cached reachability of the tray daemon
type State int

const (
	StateUnknown State = iota
	StateChecking
	StateAvailable
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateAvailable:
		return "available"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Connector is the part of the tray client a probe needs
type Connector interface {
	Connect(ctx context.Context, opts tray.ConnectOptions) error
	Disconnect() error
}

// Probe caches whether the tray daemon is reachable. Once resolved, checks
// are answered from the cache so a missing daemon costs one connection
// attempt per page lifetime instead of one per drawer operation.
type Probe struct {
	connector Connector
	timeout   time.Duration
	logger    *zap.Logger
	group     singleflight.Group

	mu    sync.Mutex
	state State
	gen   uint64
}

// NewProbe creates a probe. timeout bounds a single connection attempt.
func NewProbe(connector Connector, timeout time.Duration, logger *zap.Logger) *Probe {
	return &Probe{
		connector: connector,
		timeout:   timeout,
		logger:    logger,
	}
}

// State returns the cached state without touching the network
func (p *Probe) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Check returns whether the daemon is reachable. Concurrent callers share
// one in-flight attempt.
func (p *Probe) Check(ctx context.Context) bool {
	p.mu.Lock()
	switch p.state {
	case StateAvailable:
		p.mu.Unlock()
		return true
	case StateUnavailable:
		p.mu.Unlock()
		return false
	}
	p.state = StateChecking
	gen := p.gen
	p.mu.Unlock()

	v, _, _ := p.group.Do("probe", func() (interface{}, error) {
		p.mu.Lock()
		resolved, state := p.gen != gen || p.state != StateChecking, p.state
		p.mu.Unlock()
		if resolved {
			return state == StateAvailable, nil
		}
		return p.probe(ctx, gen), nil
	})
	return v.(bool)
}

// Reset discards the cached result so the next Check probes again.
// The cache covers one page lifetime; callers reset it on every page load.
func (p *Probe) Reset() {
	p.mu.Lock()
	p.gen++
	p.state = StateUnknown
	p.mu.Unlock()

	p.group.Forget("probe")
}

// Recheck discards the cached result and probes again
func (p *Probe) Recheck(ctx context.Context) bool {
	p.Reset()
	return p.Check(ctx)
}

// MarkUnavailable records a live connection failure so later checks skip the network
func (p *Probe) MarkUnavailable() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.state = StateUnavailable
	p.logger.Info("tray daemon marked unavailable")
}

func (p *Probe) probe(ctx context.Context, gen uint64) bool {
	// The result is shared with every waiting caller, so the first
	// caller's cancellation must not decide it.
	ctx = context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	err := p.connector.Connect(ctx, tray.ProbeOptions)
	available := err == nil
	if available {
		if derr := p.connector.Disconnect(); derr != nil {
			p.logger.Debug("probe disconnect failed", zap.Error(derr))
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// A MarkUnavailable or Recheck that happened meanwhile wins.
	if p.gen != gen {
		return p.state == StateAvailable
	}
	if available {
		p.state = StateAvailable
	} else {
		p.state = StateUnavailable
	}

	p.logger.Info("tray availability checked",
		zap.Bool("available", available),
		zap.Duration("took", time.Since(start)),
		zap.Error(err))
	return available
}
