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

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/sio"
	"github.com/Comcast/surface/storage"
)

// Service couples an Engine to the chosen Couplings, to Storage, and
// to any WebSocket clients.
//
// Service is itself a sio.Couplings: it forwards the inner couplings'
// input to the Engine, and it copies every Result to the firehose
// before passing it on.
type Service struct {
	Surface   *control.Surface
	Engine    *sio.Engine
	Storage   storage.Storage
	SurfaceId string

	Verbose bool

	inner sio.Couplings
	in    chan interface{}
	out   chan *sio.Result
	done  chan bool

	firehose chan interface{}
}

// NewService makes a Service.  The inner couplings can be nil, in
// which case ops are applied directly to the Engine (see Inject).
func NewService(surface *control.Surface, st storage.Storage, sid string, inner sio.Couplings) *Service {
	if st == nil {
		st = &storage.NoopStorage{}
	}
	return &Service{
		Surface:   surface,
		Storage:   st,
		SurfaceId: sid,
		inner:     inner,
	}
}

func (s *Service) logf(format string, args ...interface{}) {
	if s.Verbose {
		log.Printf("Service."+format, args...)
	}
}

// Start starts the inner couplings and the forwarding goroutines.
func (s *Service) Start(ctx context.Context) error {
	if s.inner == nil {
		return fmt.Errorf("no couplings")
	}
	if err := s.inner.Start(ctx); err != nil {
		return err
	}
	in, out, done, err := s.inner.IO(ctx)
	if err != nil {
		return err
	}

	s.in = make(chan interface{})
	s.out = make(chan *sio.Result)
	s.done = done

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case x := <-in:
				select {
				case <-ctx.Done():
					return
				case s.in <- x:
				}
				if x == nil {
					return
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-s.out:
				s.publish(map[string]interface{}{"result": r})
				select {
				case <-ctx.Done():
					return
				case out <- r:
				}
			}
		}
	}()

	return nil
}

// IO returns the channels that Start created.
func (s *Service) IO(ctx context.Context) (chan interface{}, chan *sio.Result, chan bool, error) {
	if s.in == nil {
		return nil, nil, nil, fmt.Errorf("not started")
	}
	return s.in, s.out, s.done, nil
}

// Read returns the inner couplings' initial controls.
func (s *Service) Read(ctx context.Context) ([]*control.Data, error) {
	if s.inner == nil {
		return nil, nil
	}
	return s.inner.Read(ctx)
}

// Stop stops the inner couplings.
func (s *Service) Stop(ctx context.Context) error {
	if s.inner == nil {
		return nil
	}
	return s.inner.Stop(ctx)
}

// Inject gives the Msg to the Engine's loop.  Without a running loop,
// the Msg is processed and flushed immediately.
func (s *Service) Inject(ctx context.Context, m *sio.Msg) error {
	if s.in == nil {
		if err := s.Engine.ProcessMsg(ctx, m); err != nil {
			return err
		}
		for _, r := range s.Engine.Flush(ctx) {
			s.publish(map[string]interface{}{"result": r})
		}
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.in <- m:
		return nil
	}
}

// publish sends something to the firehose (if any) without
// blocking.
func (s *Service) publish(x interface{}) {
	if s.firehose == nil {
		return
	}
	select {
	case s.firehose <- x:
	default:
		log.Printf("s.firehose blocked")
	}
}

// Restore opens the Storage and loads its controls for the
// SurfaceId.
func (s *Service) Restore(ctx context.Context) (int, error) {
	if err := s.Storage.Open(ctx); err != nil {
		return 0, err
	}
	if err := s.Storage.MakeSurface(ctx, s.SurfaceId); err != nil {
		return 0, err
	}
	return storage.Restore(ctx, s.Storage, s.SurfaceId, s.Surface)
}

// Persist writes the given controls (all if none are given) to
// Storage.
func (s *Service) Persist(ctx context.Context, ids ...string) error {
	var cs []*control.Control
	if len(ids) == 0 {
		cs = s.Surface.Controls()
	} else {
		for _, id := range ids {
			if c := s.Surface.Get(id); c != nil {
				cs = append(cs, c)
			}
		}
	}
	if len(cs) == 0 {
		return nil
	}
	return s.Storage.WriteState(ctx, s.SurfaceId, storage.AsControlStates(cs...))
}

// Add loads the control, stores it, and asks for its evaluation.
// If the control can't be stored, it's removed from the Surface.
func (s *Service) Add(ctx context.Context, d *control.Data) error {
	if _, err := s.Surface.Load(d); err != nil {
		return err
	}
	if err := s.Persist(ctx, d.Id); err != nil {
		if rerr := s.Surface.Remove(d.Id); rerr != nil {
			return NewWrappedError(rerr, err)
		}
		return err
	}
	return s.Inject(ctx, &sio.Msg{Evaluate: d.Id})
}

// Remove removes the control from the Surface, the Engine, and
// Storage.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.Surface.Remove(id); err != nil {
		return err
	}
	s.Engine.Forget(id)
	return s.Storage.WriteState(ctx, s.SurfaceId, storage.Removed(id))
}

// Changed persists a control that was edited in place and asks for
// its evaluation.
func (s *Service) Changed(ctx context.Context, id string) error {
	if err := s.Persist(ctx, id); err != nil {
		return err
	}
	return s.Inject(ctx, &sio.Msg{Evaluate: id})
}

// RunAction is the Surface's action runner.  Actions that aren't
// internal go to the firehose.
func (s *Service) RunAction(ctx context.Context, controlId string, a *core.Entity) error {
	s.logf("RunAction %s %s", controlId, a.Key())
	s.publish(map[string]interface{}{
		"action": map[string]interface{}{
			"controlId": controlId,
			"action":    a,
			"at":        core.Timestamp(),
		},
	})
	return nil
}
