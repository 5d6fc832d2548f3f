package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Comcast/surface/sio"
)

func TestHTTPHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newService(t, nil)
	ts := httptest.NewServer(s.HTTPHandler(ctx))
	defer ts.Close()

	post := func(js string) (int, *SOp) {
		resp, err := http.Post(ts.URL+"/api", "application/json", strings.NewReader(js))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var op SOp
		if err = json.NewDecoder(resp.Body).Decode(&op); err != nil {
			t.Fatal(err)
		}
		return resp.StatusCode, &op
	}

	get := func(path string) (int, string) {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		bs, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		return resp.StatusCode, string(bs)
	}

	if status, op := post(`{"add":{"id":"b1","type":"button","style":{"text":"hi"}}}`); status != http.StatusOK || op.Err != "" {
		t.Fatal(status, op.Err)
	}

	if status, op := post(`{"get":"b1"}`); status != http.StatusOK || op.Control == nil || op.Control.Style["text"] != "hi" {
		t.Fatal(status, sio.JS(op))
	}

	if status, op := post(`{}`); status != http.StatusBadRequest || op.Err == "" {
		t.Fatal(status, sio.JS(op))
	}

	if status, body := get("/controls"); status != http.StatusOK || strings.TrimSpace(body) != `["b1"]` {
		t.Fatal(status, body)
	}

	if status, body := get("/controls/b1"); status != http.StatusOK || !strings.Contains(body, `"id":"b1"`) {
		t.Fatal(status, body)
	}

	if status, body := get("/controls/b1/html"); status != http.StatusOK || !strings.Contains(body, "<h1>b1</h1>") {
		t.Fatal(status, body)
	}

	if status, _ := get("/controls/nope"); status != http.StatusNotFound {
		t.Fatal(status)
	}

	resp, err := http.Get(ts.URL + "/api")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatal(resp.StatusCode)
	}
}
