package pacer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultDecay(t *testing.T) {
	c := NewDefault(MinSleep(1*time.Microsecond), MaxSleep(1*time.Second))
	for _, test := range []struct {
		in            State
		decayConstant uint
		want          time.Duration
	}{
		{State{SleepTime: 8 * time.Millisecond}, 1, 4 * time.Millisecond},
		{State{SleepTime: 1 * time.Millisecond}, 0, 1 * time.Microsecond},
	} {
		c.decayConstant = test.decayConstant
		got := c.Calculate(test.in)
		assert.Equal(t, test.want, got, "test: %+v", test)
	}
}

func TestDefaultAttack(t *testing.T) {
	c := NewDefault(MinSleep(1*time.Microsecond), MaxSleep(1*time.Second))
	for _, test := range []struct {
		in             State
		attackConstant uint
		want           time.Duration
	}{
		{State{SleepTime: 1 * time.Millisecond, ConsecutiveRetries: 1}, 1, 2 * time.Millisecond},
		{State{SleepTime: 1 * time.Millisecond, ConsecutiveRetries: 1}, 0, 1 * time.Second},
	} {
		c.attackConstant = test.attackConstant
		got := c.Calculate(test.in)
		assert.Equal(t, test.want, got, "test: %+v", test)
	}
}

func TestNewDefaults(t *testing.T) {
	p := New(RetriesOption(7), MaxConnectionsOption(9))
	d, ok := p.calculator.(*Default)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, d.minSleep)
	assert.Equal(t, 2*time.Second, d.maxSleep)
	assert.Equal(t, 7, p.retries)
	assert.Equal(t, 9, p.maxConnections)
	assert.Equal(t, 9, cap(p.connTokens))
}

func TestSetMaxConnectionsZeroClearsTokens(t *testing.T) {
	p := New()
	p.SetMaxConnections(5)
	assert.Equal(t, 5, cap(p.connTokens))
	p.SetMaxConnections(0)
	assert.Nil(t, p.connTokens)
}

func TestCallSucceedsWithoutRetry(t *testing.T) {
	p := New(CalculatorOption(NewDefault(MinSleep(time.Microsecond), MaxSleep(time.Millisecond))))
	calls := 0
	err := p.Call(func() (bool, error) {
		calls++
		return false, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallRetriesUntilSuccess(t *testing.T) {
	p := New(
		RetriesOption(5),
		CalculatorOption(NewDefault(MinSleep(time.Microsecond), MaxSleep(time.Millisecond))),
	)
	calls := 0
	err := p.Call(func() (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("transient")
		}
		return false, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestCallExhaustsRetries(t *testing.T) {
	p := New(
		RetriesOption(2),
		CalculatorOption(NewDefault(MinSleep(time.Microsecond), MaxSleep(time.Millisecond))),
	)
	calls := 0
	err := p.Call(func() (bool, error) {
		calls++
		return true, errors.New("always fails")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}
