// Package pacer throttles and retries calls against flaky remote
// services (the WebDAV server): a single
// token gates pacing between calls, a separate pool gates how many
// run concurrently, and the sleep between retries grows or decays
// based on whether the last call needed retrying.
package pacer

import (
	"fmt"
	"sync"
	"time"
)

// State is the pacer's view of recent call history, fed to a
// Calculator to produce the next sleep.
type State struct {
	SleepTime          time.Duration
	ConsecutiveRetries int
	LastError          error
}

// Calculator derives the next SleepTime from the current State.
type Calculator interface {
	Calculate(state State) time.Duration
}

// Default is a decay/attack calculator: each successful call decays
// the sleep time by 1/(2^decayConstant), each retry multiplies it by
// 2^attackConstant/(2^attackConstant-1). A constant of 0 jumps
// straight to minSleep or maxSleep; results stay within both bounds.
type Default struct {
	minSleep, maxSleep            time.Duration
	decayConstant, attackConstant uint
}

// Option configures a Pacer or a Default calculator.
type Option func(interface{})

func MinSleep(d time.Duration) Option {
	return func(v interface{}) {
		if c, ok := v.(*Default); ok {
			c.minSleep = d
		}
	}
}

func MaxSleep(d time.Duration) Option {
	return func(v interface{}) {
		if c, ok := v.(*Default); ok {
			c.maxSleep = d
		}
	}
}

func DecayConstant(n uint) Option {
	return func(v interface{}) {
		if c, ok := v.(*Default); ok {
			c.decayConstant = n
		}
	}
}

func AttackConstant(n uint) Option {
	return func(v interface{}) {
		if c, ok := v.(*Default); ok {
			c.attackConstant = n
		}
	}
}

// NewDefault builds a Default calculator with sensible bounds, tuned
// by MinSleep/MaxSleep/DecayConstant/AttackConstant options.
func NewDefault(opts ...Option) *Default {
	c := &Default{
		minSleep:       10 * time.Millisecond,
		maxSleep:       2 * time.Second,
		decayConstant:  2,
		attackConstant: 1,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Default) Calculate(state State) time.Duration {
	if state.ConsecutiveRetries == 0 {
		sleepTime := c.minSleep
		if c.decayConstant != 0 {
			sleepTime = (state.SleepTime<<c.decayConstant - state.SleepTime) >> c.decayConstant
		}
		return clamp(sleepTime, c.minSleep, c.maxSleep)
	}
	sleepTime := c.maxSleep
	if c.attackConstant != 0 {
		sleepTime = (state.SleepTime << c.attackConstant) / ((1 << c.attackConstant) - 1)
	}
	return clamp(sleepTime, c.minSleep, c.maxSleep)
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// Pacer serializes and rate-limits calls to a remote service,
// retrying on transient failures per the Calculator's schedule.
type Pacer struct {
	mu             sync.Mutex
	calculator     Calculator
	state          State
	retries        int
	maxConnections int
	pacer          chan struct{}
	connTokens     chan struct{}
}

type pacerOption func(*Pacer)

func RetriesOption(n int) pacerOption {
	return func(p *Pacer) { p.retries = n }
}

func MaxConnectionsOption(n int) pacerOption {
	return func(p *Pacer) { p.SetMaxConnections(n) }
}

func CalculatorOption(c Calculator) pacerOption {
	return func(p *Pacer) { p.calculator = c }
}

// New builds a Pacer. Defaults: 3 attempts per Call, unlimited
// connections, a Default calculator.
func New(opts ...pacerOption) *Pacer {
	p := &Pacer{
		calculator: NewDefault(),
		retries:    3,
		pacer:      make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	if d, ok := p.calculator.(*Default); ok {
		p.state.SleepTime = d.minSleep
	}
	p.pacer <- struct{}{}
	return p
}

// SetMaxConnections bounds how many calls may be in flight at once. 0
// means unlimited.
func (p *Pacer) SetMaxConnections(n int) {
	p.maxConnections = n
	if n <= 0 {
		p.connTokens = nil
		return
	}
	p.connTokens = make(chan struct{}, n)
	for i := 0; i < n; i++ {
		p.connTokens <- struct{}{}
	}
}

// SetRetries changes how many attempts in total Call makes at a
// failing Paced function.
func (p *Pacer) SetRetries(n int) { p.retries = n }

func (p *Pacer) beginCall() {
	<-p.pacer
	if p.connTokens != nil {
		<-p.connTokens
	}
	p.mu.Lock()
	sleepTime := p.calculator.Calculate(p.state)
	p.mu.Unlock()
	time.Sleep(sleepTime)
	p.pacer <- struct{}{}
}

func (p *Pacer) endCall(retry bool, err error) {
	if p.connTokens != nil {
		p.connTokens <- struct{}{}
	}
	p.mu.Lock()
	if retry {
		p.state.ConsecutiveRetries++
	} else {
		p.state.ConsecutiveRetries = 0
	}
	p.state.LastError = err
	p.state.SleepTime = p.calculator.Calculate(p.state)
	p.mu.Unlock()
}

// Paced is called by Call; it returns (retry, err). retry true means
// try again (subject to the retry budget).
type Paced func() (bool, error)

// Call runs fn up to p.retries times in total, trying again only
// while fn reports retry.
func (p *Pacer) Call(fn Paced) error {
	var err error
	var retry bool
	for try := 0; try < p.retries; try++ {
		p.beginCall()
		retry, err = fn()
		p.endCall(retry, err)
		if !retry {
			return err
		}
	}
	if err == nil {
		err = fmt.Errorf("pacer: too many retries")
	}
	return err
}
