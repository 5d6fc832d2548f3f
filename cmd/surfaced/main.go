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

// Package main is a control surface process.  Variable changes and
// button events come from stdin or an MQTT broker, and control
// Results go back the same way.
//
// Controls can be persisted in BoltDB, and an optional HTTP service
// (with WebSockets) can add, edit, and remove controls.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/core"
	"github.com/Comcast/surface/sio"
	"github.com/Comcast/surface/storage"
	"github.com/Comcast/surface/storage/bolt"
	"github.com/Comcast/surface/timers"
)

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.LUTC)
}

func main() {

	var (
		conf       = DefaultConfig()
		configFile = flag.String("config", "", "Optional YAML configuration file")
		help       = flag.Bool("h", false, "Get usage")
	)

	conf.Flags(flag.CommandLine)

	flag.Parse()

	if *help {
		flag.PrintDefaults()

		{
			fmt.Fprintf(os.Stderr, "\n-io std (default):\n\n")
			_, fs := NewStdCouplings(nil)
			fs.PrintDefaults()
		}

		{
			fmt.Fprintf(os.Stderr, "\n-io mq:\n\n")
			_, fs, _ := NewMQTTCouplings(nil)
			fs.PrintDefaults()
		}

		os.Exit(0)
	}

	if err := conf.Load(flag.CommandLine, *configFile); err != nil {
		log.Fatal(err)
	}

	if err := run(conf, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(conf *Config, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reg core.Registry
	if conf.Definitions != "" {
		r, err := ReadDefinitions(ctx, conf.Definitions)
		if err != nil {
			return err
		}
		reg = r
	}

	ts := timers.NewTimers(conf.MaxTimers)
	go func() {
		if err := ts.Run(ctx); err != nil {
			log.Printf("timers: %s", err)
		}
	}()

	surface := control.NewSurface(reg, ts)
	surface.Debug = conf.Verbose

	var (
		cio   sio.Couplings
		store *sio.JSONStore
	)
	switch conf.IO {
	case "std":
		c, _ := NewStdCouplings(args)
		store = &c.JSONStore
		cio = c
	case "mq", "mqtt":
		c, _, err := NewMQTTCouplings(args)
		if err != nil {
			return err
		}
		store = &c.JSONStore
		cio = c
	default:
		return fmt.Errorf("unknown io: '%s'", conf.IO)
	}
	store.Surface = surface

	var st storage.Storage = &storage.NoopStorage{}
	if conf.DB != "" {
		b, err := bolt.NewStorage(conf.DB)
		if err != nil {
			return err
		}
		b.Debug = conf.Verbose
		st = b
	}

	s := NewService(surface, st, conf.Surface, cio)
	s.Verbose = conf.Verbose
	surface.RunAction = s.RunAction

	n, err := s.Restore(ctx)
	if err != nil {
		return err
	}
	log.Printf("restored %d controls from '%s'", n, conf.Surface)
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Printf("storage close: %s", err)
		}
	}()

	ds, err := cio.Read(ctx)
	if err != nil {
		return err
	}
	if conf.Controls != "" {
		bs, err := os.ReadFile(conf.Controls)
		if err != nil {
			return err
		}
		more, err := sio.ParseControls(bs)
		if err != nil {
			return err
		}
		ds = append(ds, more...)
	}
	for _, d := range ds {
		if _, err := surface.Load(d); err != nil {
			if errors.Is(err, control.Exists) {
				log.Printf("control %s already restored", d.Id)
				continue
			}
			return err
		}
	}
	if err = s.Persist(ctx); err != nil {
		return err
	}

	if err = s.Start(ctx); err != nil {
		return err
	}

	e, err := sio.NewEngine(ctx, &conf.Engine, surface, s)
	if err != nil {
		return err
	}
	e.Verbose = conf.Verbose
	s.Engine = e

	if conf.HTTP != "" {
		mux := s.HTTPHandler(ctx)
		if conf.WebSockets {
			if err = s.WebSockets(ctx, mux, conf.HTTP); err != nil {
				return err
			}
		}
		go func() {
			if err := http.ListenAndServe(conf.HTTP, mux); err != nil {
				log.Printf("HTTP service: %s", err)
			}
		}()
	}

	go func() {
		if std, is := cio.(*sio.Stdio); is {
			<-std.InputEOF
			log.Printf("input EOF (waiting %v)", conf.Wait)
			time.Sleep(conf.Wait)
			cancel()
		}
	}()

	// Everything gets an initial evaluation.
	go func() {
		if err := s.Inject(ctx, &sio.Msg{Evaluate: "*"}); err != nil {
			log.Printf("initial evaluation: %s", err)
		}
	}()

	loopErr := e.Loop(ctx)
	cancel()
	e.WaitActions()

	if err = s.Persist(context.Background()); err != nil {
		loopErr = NewWrappedError(err, loopErr)
	}

	if err = cio.Stop(context.Background()); err != nil {
		log.Printf("error from io.Stop: %v", err)
	}

	return loopErr
}
