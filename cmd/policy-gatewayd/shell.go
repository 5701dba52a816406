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

package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/solawi-ev/policy-gateway/internal/store"
)

type shellCommand struct {
	Store *store.Store
}

func (s *shellCommand) run() error {
	shell := ishell.New()
	s.setupShell(shell)
	shell.Run()

	return nil
}

func (s *shellCommand) setupShell(shell *ishell.Shell) {
	shell.AddCmd(composeShellCmd(
		ishell.Cmd{
			Name: "category",
			Help: "manage message categories",
		},
		[]*ishell.Cmd{
			{
				Name: "add",
				Help: "add a new message category: category add [NAME] [EMAIL]",
				Func: s.wrapShellFunc(s.categoryAdd),
			},
			{
				Name: "activate",
				Help: "mark a category active: category activate [ID]",
				Func: s.wrapShellFunc(s.categoryActivate),
			},
			{
				Name: "deactivate",
				Help: "mark a category inactive: category deactivate [ID]",
				Func: s.wrapShellFunc(s.categoryDeactivate),
			},
		},
	))

	shell.AddCmd(composeShellCmd(
		ishell.Cmd{
			Name: "subscription",
			Help: "manage subscriptions",
		},
		[]*ishell.Cmd{
			{
				Name: "add",
				Help: "subscribe an address to a category: subscription add [EMAIL] [CATEGORY_ID]",
				Func: s.wrapShellFunc(s.subscriptionAdd),
			},
			{
				Name: "activate",
				Help: "mark a subscription active: subscription activate [ID]",
				Func: s.wrapShellFunc(s.subscriptionActivate),
			},
			{
				Name: "deactivate",
				Help: "mark a subscription inactive: subscription deactivate [ID]",
				Func: s.wrapShellFunc(s.subscriptionDeactivate),
			},
		},
	))

	shell.AddCmd(composeShellCmd(
		ishell.Cmd{
			Name: "blockedip",
			Help: "manage blocked connecting IPs",
		},
		[]*ishell.Cmd{
			{
				Name: "add",
				Help: "block an ip: blockedip add [IP] [REASON]",
				Func: s.wrapShellFunc(s.blockedIPAdd),
			},
			{
				Name: "remove",
				Help: "unblock an ip: blockedip remove [IP]",
				Func: s.wrapShellFunc(s.blockedIPRemove),
			},
		},
	))

	shell.AddCmd(&ishell.Cmd{
		Name: "logs",
		Help: "show the most recent audit log rows: logs [LIMIT]",
		Func: s.wrapShellFunc(s.logsDump),
	})
}

func (s *shellCommand) categoryAdd(ctx shellContext) error {
	if !ctx.checkArgs(2) {
		return errors.New("Usage: category add [NAME] [EMAIL]")
	}

	id, err := s.Store.AddMessageCategory(ctx.Context, adminPrincipal(), ctx.arg(0), ctx.arg(1), "")
	if err != nil {
		return err
	}

	ctx.printf("\n\tCategory %q added with id=%d.\n\n", ctx.arg(0), id)
	return nil
}

func (s *shellCommand) categoryActivate(ctx shellContext) error {
	return s.setCategoryActive(ctx, true)
}

func (s *shellCommand) categoryDeactivate(ctx shellContext) error {
	return s.setCategoryActive(ctx, false)
}

func (s *shellCommand) setCategoryActive(ctx shellContext, active bool) error {
	if !ctx.checkArgs(1) {
		return errors.New("Usage: category activate|deactivate [ID]")
	}

	id, err := strconv.ParseInt(ctx.arg(0), 10, 64)
	if err != nil {
		return err
	}

	if err := s.Store.SetCategoryActive(ctx.Context, adminPrincipal(), id, active); err != nil {
		return err
	}

	ctx.printf("\n\tCategory %d active=%v.\n\n", id, active)
	return nil
}

func (s *shellCommand) subscriptionAdd(ctx shellContext) error {
	if !ctx.checkArgs(2) {
		return errors.New("Usage: subscription add [EMAIL] [CATEGORY_ID]")
	}

	categoryID, err := strconv.ParseInt(ctx.arg(1), 10, 64)
	if err != nil {
		return err
	}

	id, err := s.Store.AddSubscription(ctx.Context, 0, ctx.arg(0), categoryID)
	if err != nil {
		return err
	}

	ctx.printf("\n\tSubscription added with id=%d.\n\n", id)
	return nil
}

func (s *shellCommand) subscriptionActivate(ctx shellContext) error {
	return s.setSubscriptionActive(ctx, true)
}

func (s *shellCommand) subscriptionDeactivate(ctx shellContext) error {
	return s.setSubscriptionActive(ctx, false)
}

func (s *shellCommand) setSubscriptionActive(ctx shellContext, active bool) error {
	if !ctx.checkArgs(1) {
		return errors.New("Usage: subscription activate|deactivate [ID]")
	}

	id, err := strconv.ParseInt(ctx.arg(0), 10, 64)
	if err != nil {
		return err
	}

	if err := s.Store.SetSubscriptionActive(ctx.Context, id, active); err != nil {
		return err
	}

	ctx.printf("\n\tSubscription %d active=%v.\n\n", id, active)
	return nil
}

func (s *shellCommand) blockedIPAdd(ctx shellContext) error {
	if !ctx.checkArgs(2) {
		return errors.New("Usage: blockedip add [IP] [REASON]")
	}

	if err := s.Store.BlockIP(ctx.Context, adminPrincipal(), ctx.arg(0), ctx.arg(1)); err != nil {
		return err
	}

	ctx.printf("\n\tIP %q blocked.\n\n", ctx.arg(0))
	return nil
}

func (s *shellCommand) blockedIPRemove(ctx shellContext) error {
	if !ctx.checkArgs(1) {
		return errors.New("Usage: blockedip remove [IP]")
	}

	if err := s.Store.UnblockIP(ctx.Context, adminPrincipal(), ctx.arg(0)); err != nil {
		return err
	}

	ctx.printf("\n\tIP %q unblocked.\n\n", ctx.arg(0))
	return nil
}

func (s *shellCommand) logsDump(ctx shellContext) error {
	limit := 20
	if ctx.checkArgs(1) {
		n, err := strconv.Atoi(ctx.arg(0))
		if err != nil {
			return err
		}

		limit = n
	}

	connections, messages, err := s.Store.DumpLogs(ctx.Context, limit)
	if err != nil {
		return err
	}

	ctx.printf("\n(%d) Connection log rows:\n", len(connections))
	for _, row := range connections {
		ctx.printf("\t%s %s %s %s\n", row.ClientIP, row.Stage, row.Action, row.Details)
	}

	ctx.printf("\n(%d) Message log rows:\n", len(messages))
	for _, row := range messages {
		ctx.printf("\t%s -> %s %q %s\n", row.FromAddress, row.ToAddresses, row.Subject, row.Action)
	}
	ctx.printf("\n")

	return nil
}

// adminPrincipal grants shell operators admin authority through a "staff"
// claim, which store.IsAdmin accepts: the shell itself is only reachable by
// an operator already holding server access.
func adminPrincipal() store.Principal {
	return store.Principal{
		Subject: "shell",
		Claims:  map[string]interface{}{"staff": true},
	}
}

type shellContext struct {
	context.Context
	shell *ishell.Context
}

func (c *shellContext) checkArgs(n int) bool {
	return len(c.shell.Args) == n
}

func (c *shellContext) arg(i int) string {
	return c.shell.Args[i]
}

func (c *shellContext) printf(format string, v ...interface{}) {
	c.shell.Printf(format, v...)
}

func composeShellCmd(cmd ishell.Cmd, children []*ishell.Cmd) *ishell.Cmd {
	for _, child := range children {
		cmd.AddCmd(child)
	}

	return &cmd
}

func (s *shellCommand) wrapShellFunc(fn func(shellContext) error) func(*ishell.Context) {
	return func(shell *ishell.Context) {
		ctx := shellContext{
			Context: context.Background(),
			shell:   shell,
		}

		if err := fn(ctx); err != nil {
			shell.Err(err)
		}
	}
}
