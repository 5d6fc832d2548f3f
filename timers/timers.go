/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package timers manages a set of pending timers with a single
// time.Timer.  The button hold thresholds of package steps are
// implemented with it.
//
// Pending timers are kept in a backlog ordered by ascending trigger
// time.  When the head of the backlog changes, the internal timer is
// replaced with one that waits for the new head.  A Timers instance
// is meant for dozens or hundreds of timers, not many thousands.
//
// A timer's work is performed in a new goroutine.  A timer that has
// been removed never fires, even if its time has already come.
package timers

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var (
	NotFound       = errors.New("not found")
	TooMany        = errors.New("too many")
	IdExists       = errors.New("id exists")
	NotRunning     = errors.New("not running")
	AlreadyRunning = errors.New("already running")
)

const (
	notRunning = int64(iota)
	running
)

// Timer represents some work to be done in the future.
type Timer struct {
	// Id is unique across all pending timers of a Timers
	// instance.
	Id string `json:"id"`

	// F is the work to be performed.
	F func(context.Context, *Timer) `json:"-"`

	// At is the desired time to execute F.
	At time.Time `json:"at"`

	// Executed is written just before F is executed.
	Executed time.Time `json:"executed"`
}

// Timers is a managed set of Timer instances.
//
// You need to Run the Timers before calling Add.
type Timers struct {
	Max   int  `json:"max"`
	Debug bool `json:"-"`

	sync.Mutex
	up      chan *Timer
	backlog []*Timer
	running int64
	ready   chan bool
	stopped chan struct{}
}

// NewTimers makes a new instance with the given maximum number of
// pending timers.
func NewTimers(max int) *Timers {
	initial := max / 4
	if initial < 8 {
		initial = 8
	}
	return &Timers{
		Max:     max,
		up:      make(chan *Timer, 32),
		backlog: make([]*Timer, 0, initial),
		ready:   make(chan bool, 1),
		stopped: make(chan struct{}),
	}
}

// Run processes timers in the current goroutine until the context is
// done.  This method must be running to use the Timers instance.
func (ts *Timers) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt64(&ts.running, notRunning, running) {
		return AlreadyRunning
	}

	// timer is the internal timer for the head of the backlog.
	var timer *time.Timer

	ts.ready <- true
LOOP:
	for {
		select {
		case <-ctx.Done():
			break LOOP
		case t := <-ts.up:
			if timer != nil {
				timer.Stop()
				timer = nil
			}
			if t == nil {
				ts.debugf("backlog empty")
				continue
			}
			d := time.Until(t.At)
			ts.debugf("timer %s in %s", t.Id, d)
			timer = time.AfterFunc(d, func() {
				if !ts.take(t) {
					ts.debugf("timer %s already gone", t.Id)
					return
				}
				ts.debugf("timer %s firing", t.Id)
				t.Executed = time.Now().UTC()
				go t.F(ctx, t)
			})
		}
	}

	if timer != nil {
		timer.Stop()
	}
	close(ts.stopped)
	select {
	case <-ts.ready:
	default:
	}
	atomic.StoreInt64(&ts.running, notRunning)

	return nil
}

// IsRunning reports whether the Run method is currently executing.
func (ts *Timers) IsRunning() bool {
	return atomic.LoadInt64(&ts.running) == running
}

// Wait waits for Run to start.
func (ts *Timers) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-ts.ready:
		ts.ready <- true
		return true
	}
}

// Add adds the given timer.
func (ts *Timers) Add(t *Timer) error {
	ts.debugf("add %s %s", t.Id, time.Until(t.At))

	if !ts.IsRunning() {
		return NotRunning
	}

	ts.Lock()
	defer ts.Unlock()

	if 0 < ts.Max && len(ts.backlog) == ts.Max {
		return TooMany
	}
	for _, x := range ts.backlog {
		if x.Id == t.Id {
			return IdExists
		}
	}

	i := sort.Search(len(ts.backlog), func(i int) bool {
		return ts.backlog[i].At.After(t.At)
	})
	ts.backlog = append(ts.backlog, nil)
	copy(ts.backlog[i+1:], ts.backlog[i:])
	ts.backlog[i] = t
	if i == 0 {
		ts.reset()
	}
	return nil
}

// Rem removes the timer with the given id.
func (ts *Timers) Rem(id string) error {
	ts.debugf("rem %s", id)

	if !ts.IsRunning() {
		return NotRunning
	}

	ts.Lock()
	defer ts.Unlock()

	for i, t := range ts.backlog {
		if t.Id == id {
			ts.remove(i)
			return nil
		}
	}
	return NotFound
}

// Pending returns the ids of the pending timers in the order they
// will fire.
func (ts *Timers) Pending() []string {
	ts.Lock()
	acc := make([]string, len(ts.backlog))
	for i, t := range ts.backlog {
		acc[i] = t.Id
	}
	ts.Unlock()
	return acc
}

// take removes the given timer if it's still pending.  Assumes the
// lock isn't held.
func (ts *Timers) take(t *Timer) bool {
	ts.Lock()
	defer ts.Unlock()
	for i, x := range ts.backlog {
		if x == t {
			ts.remove(i)
			return true
		}
	}
	return false
}

// remove assumes the lock is held.
func (ts *Timers) remove(i int) {
	copy(ts.backlog[i:], ts.backlog[i+1:])
	ts.backlog[len(ts.backlog)-1] = nil // Try to avoid leaks.
	ts.backlog = ts.backlog[:len(ts.backlog)-1]
	if i == 0 {
		ts.reset()
	}
}

// reset indirectly replaces the internal timer with one for the new
// head of the backlog (if any).  Assumes the lock is held.
func (ts *Timers) reset() {
	var head *Timer
	if 0 < len(ts.backlog) {
		head = ts.backlog[0]
	}
	select {
	case ts.up <- head:
	case <-ts.stopped:
	}
}

func (ts *Timers) debugf(format string, args ...interface{}) {
	if ts.Debug {
		log.Printf("Timers "+format, args...)
	}
}
