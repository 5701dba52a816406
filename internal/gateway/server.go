// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package gateway is the HTTP service exposing POST /mta-hook and
// POST /user-sync. It parses requests, consults the store, and is the only
// place that maps internal errors to the wire-level error taxonomy.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/sync/semaphore"

	"github.com/solawi-ev/policy-gateway/internal/policy"
	"github.com/solawi-ev/policy-gateway/internal/store"
)

func init() {
	viper.SetDefault("gateway.hooktimeout", 30*time.Second)
	viper.SetDefault("gateway.maxinflight", 256)
	viper.SetDefault("gateway.backpressurewait", 500*time.Millisecond)
}

// Server is the Gateway's HTTP handler set. It is stateless across requests
// aside from its Store client and policy Engine, both shared and safe for
// concurrent use.
type Server struct {
	store  *store.Store
	engine *policy.Engine

	hookTimeout      time.Duration
	backpressureWait time.Duration
	inflight         *semaphore.Weighted

	mux *http.ServeMux
}

// New builds a Server reading gateway.hooktimeout / gateway.maxinflight /
// gateway.backpressurewait from viper.
func New(s *store.Store, engine *policy.Engine) *Server {
	server := &Server{
		store:            s,
		engine:           engine,
		hookTimeout:      viper.GetDuration("gateway.hooktimeout"),
		backpressureWait: viper.GetDuration("gateway.backpressurewait"),
		inflight:         semaphore.NewWeighted(viper.GetInt64("gateway.maxinflight")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/mta-hook", server.handleMtaHook)
	mux.HandleFunc("/user-sync", server.handleUserSync)
	mux.HandleFunc("/healthz", server.handleHealthz)
	server.mux = mux

	return server
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// acquire applies the back-pressure policy: it blocks for at most
// backpressureWait trying to acquire a slot, returning false if the
// in-flight request queue is saturated.
func (s *Server) acquire(ctx context.Context) (func(), bool) {
	ctx, cancel := context.WithTimeout(ctx, s.backpressureWait)
	defer cancel()

	if err := s.inflight.Acquire(ctx, 1); err != nil {
		return nil, false
	}

	return func() { s.inflight.Release(1) }, true
}
