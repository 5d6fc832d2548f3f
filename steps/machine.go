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

package steps

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/timers"
)

// MachineOptions are the button options that the Machine honors.
type MachineOptions struct {
	StepAutoProgress bool `json:"stepAutoProgress" yaml:"stepAutoProgress"`
	RotaryActions    bool `json:"rotaryActions" yaml:"rotaryActions"`
}

// Machine turns press, release, and rotate events into action set
// runs.
//
// A press runs the current Step's down set and schedules each hold
// threshold set to run once, in ascending order, if the button is
// still held.  A release runs the up set, unless the down set runs
// while held, in which case the release stops the down run instead.
// A release also stops any running hold sets that run while held.
type Machine struct {
	// Id must be unique among Machines that share Timers.
	Id string

	Steps *Steps

	// Locker (optional) guards Steps.
	Locker sync.Locker

	Timers   *timers.Timers
	Executor Executor
	Options  MachineOptions

	Debug bool

	sync.Mutex
	pressed   bool
	pressStep string
	presses   int
	held      map[ActionSetId]context.CancelFunc
	holds     []string
	wg        sync.WaitGroup
}

type run struct {
	set     ActionSetId
	actions []*core.Entity
	held    bool
}

func (m *Machine) logf(format string, args ...interface{}) {
	if m.Debug {
		log.Printf(format, args...)
	}
}

func (m *Machine) lock() {
	if m.Locker != nil {
		m.Locker.Lock()
	}
}

func (m *Machine) unlock() {
	if m.Locker != nil {
		m.Locker.Unlock()
	}
}

// snapshot gets copies of the Step's action sets.
func (m *Machine) snapshot(stepId string, sets ...ActionSetId) []run {
	acc := make([]run, 0, len(sets))
	for _, set := range sets {
		actions, err := m.Steps.Actions(stepId, set)
		if err != nil {
			continue
		}
		acc = append(acc, run{
			set:     set,
			actions: actions,
			held:    m.Steps.RunWhileHeld(stepId, set),
		})
	}
	return acc
}

// IsPressed reports whether the button is down.
func (m *Machine) IsPressed() bool {
	m.Lock()
	defer m.Unlock()
	return m.pressed
}

// Press handles a down event.  A press while pressed is ignored.
func (m *Machine) Press(ctx context.Context) error {
	m.lock()
	stepId := m.Steps.Current()
	down := m.snapshot(stepId, Down)
	var holds []run
	if s := m.Steps.Step(stepId); s != nil {
		for _, set := range s.sets {
			if set.IsHold() {
				holds = append(holds, m.snapshot(stepId, set)...)
			}
		}
	}
	m.unlock()

	m.Lock()
	defer m.Unlock()
	if m.pressed {
		m.logf("Machine.Press %s already pressed", m.Id)
		return nil
	}
	m.pressed = true
	m.pressStep = stepId
	m.presses++
	press := m.presses
	m.held = make(map[ActionSetId]context.CancelFunc, 2)
	m.holds = m.holds[:0]

	m.logf("Machine.Press %s step %s", m.Id, stepId)

	for _, r := range down {
		m.start(ctx, r)
	}

	if m.Timers == nil {
		return nil
	}
	now := time.Now()
	for _, r := range holds {
		r := r
		id := m.Id + "/" + stepId + "/" + string(r.set)
		err := m.Timers.Add(&timers.Timer{
			Id: id,
			At: now.Add(r.set.Duration()),
			F: func(ctx context.Context, _ *timers.Timer) {
				m.Lock()
				defer m.Unlock()
				if !m.pressed || m.presses != press {
					return
				}
				m.logf("Machine %s held for %s", m.Id, r.set)
				m.start(ctx, r)
			},
		})
		if err != nil {
			log.Printf("Machine.Press %s timer %s error %s", m.Id, id, err)
			continue
		}
		m.holds = append(m.holds, id)
	}
	return nil
}

// start runs an action set in a new goroutine.  Assumes the lock is
// held.
func (m *Machine) start(ctx context.Context, r run) {
	if m.Executor == nil || len(r.actions) == 0 {
		return
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(ctx)
	if r.held {
		m.held[r.set] = cancel
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		if err := m.Executor.Execute(ctx, r.actions); err != nil && ctx.Err() == nil {
			log.Printf("Machine %s set %s error %s", m.Id, r.set, err)
		}
	}()
}

// Release handles an up event.  A release without a press is
// ignored.
func (m *Machine) Release(ctx context.Context) error {
	m.Lock()
	if !m.pressed {
		m.Unlock()
		return nil
	}
	m.pressed = false
	stepId := m.pressStep
	opts := m.Options

	for _, id := range m.holds {
		if m.Timers != nil {
			m.Timers.Rem(id) // Might have fired already.
		}
	}
	m.holds = m.holds[:0]

	for set, cancel := range m.held {
		m.logf("Machine.Release %s stopping %s", m.Id, set)
		cancel()
	}
	m.held = make(map[ActionSetId]context.CancelFunc)
	m.Unlock()

	m.lock()
	downHeld := m.Steps.RunWhileHeld(stepId, Down)
	var up []run
	if !downHeld {
		up = m.snapshot(stepId, Up)
	}
	if opts.StepAutoProgress {
		m.Steps.StepNext(stepId)
	}
	m.unlock()

	m.Lock()
	defer m.Unlock()
	for _, r := range up {
		m.start(ctx, r)
	}
	return nil
}

// Rotate handles a rotation, which runs rotate_left or rotate_right
// immediately if the button has rotary actions.
func (m *Machine) Rotate(ctx context.Context, right bool) error {
	m.Lock()
	rotary := m.Options.RotaryActions
	m.Unlock()
	if !rotary {
		return nil
	}
	set := RotateLeft
	if right {
		set = RotateRight
	}
	m.lock()
	rs := m.snapshot(m.Steps.Current(), set)
	m.unlock()

	m.Lock()
	defer m.Unlock()
	if m.held == nil {
		m.held = make(map[ActionSetId]context.CancelFunc)
	}
	for _, r := range rs {
		r.held = false
		m.start(ctx, r)
	}
	return nil
}

// Wait waits for all runs to finish.
func (m *Machine) Wait() {
	m.wg.Wait()
}
