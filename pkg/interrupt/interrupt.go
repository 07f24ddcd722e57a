// Frontline Perception System
// Copyright (C) 2020-2025 TurbineOne LLC
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

// Package interrupt blocks until the process is asked to stop.
package interrupt

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalError is returned by Run when a termination signal arrived.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return "received signal " + e.Signal.String()
}

// Run waits for SIGINT or SIGTERM, or for ctx to end. It returns a *SignalError
// in the first case and ctx.Err() in the second.
func Run(ctx context.Context) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	defer signal.Stop(ch)

	return wait(ctx, ch)
}

func wait(ctx context.Context, ch <-chan os.Signal) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-ch:
		return &SignalError{Signal: sig}
	}
}
