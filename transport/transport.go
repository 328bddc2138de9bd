// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
)

// Sink consumes bytes received from a link, in arrival order and in
// whatever chunks the link delivers them.
type Sink interface {
	Feed(p []byte)
}

// Link is a byte stream to one or more field devices (A Modbus Slave we
// connect to). Writes carry whole request frames. Received bytes are pushed
// to a Sink by Run.
type Link interface {
	Connect(ctx context.Context) error
	Close() error
	Write(p []byte) (int, error)
	// Run reads from the link and feeds every chunk to sink until ctx is
	// done or the link fails. It should be called in a goroutine.
	Run(ctx context.Context, sink Sink) error
}
