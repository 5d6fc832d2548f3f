package timers

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"
)

func startTimers(t *testing.T, max int) (*Timers, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ts := NewTimers(max)
	go func() {
		if err := ts.Run(ctx); err != nil {
			t.Error(err)
		}
	}()
	if !ts.Wait(time.Second) {
		t.Fatal("timers didn't start running")
	}
	return ts, cancel
}

func TestTimersBasic(t *testing.T) {
	ts, cancel := startTimers(t, 10)
	defer cancel()

	var (
		lock  sync.Mutex
		heard []string
	)
	f := func(_ context.Context, t *Timer) {
		lock.Lock()
		heard = append(heard, t.Id)
		lock.Unlock()
	}

	add := func(id string, d time.Duration) {
		err := ts.Add(&Timer{
			Id: id,
			At: time.Now().Add(d),
			F:  f,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	add("3", 300*time.Millisecond)
	add("2", 200*time.Millisecond)
	add("1", 50*time.Millisecond)
	if err := ts.Rem("2"); err != nil {
		t.Fatal(err)
	}
	add("5", 450*time.Millisecond)
	add("4", 400*time.Millisecond)
	if err := ts.Rem("5"); err != nil {
		t.Fatal(err)
	}
	add("6", 600*time.Millisecond)

	time.Sleep(time.Second)

	want := []string{"1", "3", "4", "6"}
	lock.Lock()
	defer lock.Unlock()
	if len(heard) != len(want) {
		t.Fatal(heard)
	}
	for i, s := range heard {
		if want[i] != s {
			t.Fatalf("expected '%s' but got '%s' at %d", want[i], s, i)
		}
	}
}

func TestTimersRemHead(t *testing.T) {
	ts, cancel := startTimers(t, 10)
	defer cancel()

	fired := make(chan string, 4)
	f := func(_ context.Context, t *Timer) {
		fired <- t.Id
	}
	if err := ts.Add(&Timer{Id: "only", At: time.Now().Add(50 * time.Millisecond), F: f}); err != nil {
		t.Fatal(err)
	}
	if err := ts.Rem("only"); err != nil {
		t.Fatal(err)
	}
	select {
	case id := <-fired:
		t.Fatalf("%s fired", id)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestTimersErrors(t *testing.T) {
	ts := NewTimers(1)
	if err := ts.Add(&Timer{Id: "x"}); !errors.Is(err, NotRunning) {
		t.Fatal(err)
	}

	ts, cancel := startTimers(t, 1)
	defer cancel()

	f := func(context.Context, *Timer) {}
	if err := ts.Add(&Timer{Id: "x", At: time.Now().Add(time.Hour), F: f}); err != nil {
		t.Fatal(err)
	}
	if err := ts.Add(&Timer{Id: "y", At: time.Now().Add(time.Hour), F: f}); !errors.Is(err, TooMany) {
		t.Fatal(err)
	}
	if err := ts.Rem("y"); !errors.Is(err, NotFound) {
		t.Fatal(err)
	}
	if err := ts.Run(context.Background()); !errors.Is(err, AlreadyRunning) {
		t.Fatal(err)
	}
	if p := ts.Pending(); len(p) != 1 || p[0] != "x" {
		t.Fatal(p)
	}
}

func TestTimersLag(t *testing.T) {
	n := 100
	dMax := 20 * time.Millisecond

	ts, cancel := startTimers(t, n)
	defer cancel()

	var wg sync.WaitGroup
	f := func(_ context.Context, t *Timer) {
		wg.Done()
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		d := time.Duration(rand.Intn(int(dMax/time.Millisecond))) * time.Millisecond
		err := ts.Add(&Timer{
			Id: strconv.Itoa(i),
			At: time.Now().Add(d),
			F:  f,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	waited := make(chan bool)
	go func() {
		wg.Wait()
		close(waited)
	}()

	select {
	case <-time.After(10 * time.Second):
		t.Fatalf("timeout with %v pending", ts.Pending())
	case <-waited:
	}
}
