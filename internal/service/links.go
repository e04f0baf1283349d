package service

import (
	"context"
	"fmt"
)

// Reconnect modes. Create flips invalid markers to valid, delete the
// inverse; move repoints valid markers from the previous href to the
// new one, keeping them valid.
const (
	reconnectCreate = "create"
	reconnectMove   = "move"
	reconnectDelete = "delete"
)

// reconnectOptions identifies the link target being reconnected. The
// source fields are set for move only and name the previous location.
type reconnectOptions struct {
	Locale       string
	Path         string
	SourceLocale string
	SourcePath   string
	Mode         string
}

func internalAnchor(locale, path, validity string) string {
	return `<a href="/` + locale + `/` + path + `" class="is-internal-link ` + validity + `">`
}

// reconnectLinks rewrites the link markers of every stored render that
// links to (path, locale). The rewrite is a pure string replace of the
// full anchor opening tag, exactly as the renderer emits it, so only
// genuine internal link markers are touched. Affected pages are evicted
// from the render cache by hash.
func (s *PageService) reconnectLinks(ctx context.Context, opts reconnectOptions) error {
	var from, to string
	switch opts.Mode {
	case reconnectCreate:
		from = internalAnchor(opts.Locale, opts.Path, "is-invalid-page")
		to = internalAnchor(opts.Locale, opts.Path, "is-valid-page")
	case reconnectMove:
		from = internalAnchor(opts.SourceLocale, opts.SourcePath, "is-valid-page")
		to = internalAnchor(opts.Locale, opts.Path, "is-valid-page")
	case reconnectDelete:
		from = internalAnchor(opts.Locale, opts.Path, "is-valid-page")
		to = internalAnchor(opts.Locale, opts.Path, "is-invalid-page")
	default:
		return fmt.Errorf("unknown link reconnect mode %q", opts.Mode)
	}

	hashes, err := s.links.RewriteRenderMarkers(ctx, opts.Path, opts.Locale, from, to)
	if err != nil {
		return err
	}
	for _, hash := range hashes {
		if err := s.cache.Evict(hash); err != nil {
			s.log.Error(err, "failed to evict page with rewritten links")
		}
	}
	return nil
}
