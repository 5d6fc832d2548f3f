package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/Comcast/surface/tools"
)

// HTTPHandler serves a small API:
//
//	POST /api                  an SOp (JSON), which is returned with its results
//	GET  /controls             the control ids
//	GET  /controls/ID          the control's JSON
//	GET  /controls/ID/html     a page documenting the control
func (s *Service) HTTPHandler(ctx context.Context) *http.ServeMux {
	mux := http.NewServeMux()

	reply := func(w http.ResponseWriter, status int, x interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(x); err != nil {
			log.Printf("HTTPHandler encode error %s", err)
		}
	}

	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST an op", http.StatusMethodNotAllowed)
			return
		}
		bs, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var op SOp
		if err = json.Unmarshal(bs, &op); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status := http.StatusOK
		if err = op.Do(ctx, s); err != nil {
			status = http.StatusBadRequest
		}
		reply(w, status, &op)
	})

	mux.HandleFunc("/controls", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, s.Surface.Ids())
	})

	mux.HandleFunc("/controls/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/controls/")
		id, page := path, false
		if strings.HasSuffix(path, "/html") {
			id, page = strings.TrimSuffix(path, "/html"), true
		}
		c := s.Surface.Get(id)
		if c == nil {
			http.NotFound(w, r)
			return
		}
		d := c.Export()
		if !page {
			reply(w, http.StatusOK, d)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tools.RenderControlPage(d, w, nil, true); err != nil {
			log.Printf("HTTPHandler render error %s", err)
		}
	})

	return mux
}
