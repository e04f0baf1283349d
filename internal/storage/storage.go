// Package storage defines the contract for mirroring page changes to
// external storage targets such as git working copies or disk exports.
package storage

import (
	"context"

	"go-wiki-engine/internal/data"
	"go-wiki-engine/internal/logger"
)

// Event kinds pushed to storage targets.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindMoved   = "moved"
	KindDeleted = "deleted"
)

// Event describes one page change. Moves carry the previous location so
// targets can relocate instead of delete and recreate.
type Event struct {
	Kind       string
	Page       *data.Page
	PrevPath   string
	PrevLocale string
}

// Connector mirrors page events to a storage target. Failures are the
// target's problem to surface; the lifecycle treats them as
// non-fatal.
type Connector interface {
	PageEvent(ctx context.Context, ev Event) error
}

// LogConnector is the default target when no external storage is
// configured.
type LogConnector struct {
	log logger.Logger
}

func NewLogConnector(log logger.Logger) *LogConnector {
	return &LogConnector{log: log}
}

func (c *LogConnector) PageEvent(ctx context.Context, ev Event) error {
	c.log.With(map[string]interface{}{
		"kind":   ev.Kind,
		"path":   ev.Page.Path,
		"locale": ev.Page.LocaleCode,
	}).Info("storage sync event")
	return nil
}
