/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package overlay

import "context"

// GeneratedAsset is one table or texture produced by a generation
// pipeline (Excel row merge, font atlas) that still needs archive
// encoding and caching as a TTMP pack.
type GeneratedAsset struct {
	PathSpec string
	DatFile  string
	Data     []byte
}

// silentProgress satisfies builder.ProgressUI for generation pipelines
// run without an attached Progress UI collaborator.
type silentProgress struct{}

func (silentProgress) Update(done, total int) {}
func (silentProgress) Cancelled() bool         { return false }

// contextProgress adapts a context.Context's cancellation into
// builder.ProgressUI, for callers that only have a ctx and no real UI.
type contextProgress struct {
	ctx context.Context
}

func (p contextProgress) Update(done, total int) {}
func (p contextProgress) Cancelled() bool         { return p.ctx.Err() != nil }
