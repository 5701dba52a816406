// Copyright (C) 2019  Lukas Dietrich <lukas@lukasdietrich.com>
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

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solawi-ev/policy-gateway/internal/config"
	"github.com/solawi-ev/policy-gateway/internal/gateway"
	"github.com/solawi-ev/policy-gateway/internal/log"
	"github.com/solawi-ev/policy-gateway/internal/policy"
	"github.com/solawi-ev/policy-gateway/internal/store"
)

type serveCommand struct {
	Store  *store.Store
	Server *gateway.Server
}

func (s *serveCommand) run() error {
	bindAddress := config.BindAddress()

	httpServer := &http.Server{
		Addr:    bindAddress,
		Handler: s.Server,
	}

	go func() {
		log.Info().Str("address", bindAddress).Msg("gateway listening")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("gateway stopped unexpectedly")
		}
	}()

	waitForShutdown(httpServer)
	return s.Store.Close()
}

func waitForShutdown(httpServer *http.Server) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("gateway did not shut down cleanly")
	}
}

func policyEngine() *policy.Engine {
	return policy.NewEngine(config.RedactIPs())
}
