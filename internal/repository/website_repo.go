package repository

import (
	"context"
	"errors"
)

var (
	// ErrRenderTimeout indicates the site did not finish loading within
	// the configured page timeout.
	ErrRenderTimeout = errors.New("website render timed out")
	// ErrNavigationFailed indicates the browser could not navigate to
	// the site at all.
	ErrNavigationFailed = errors.New("website navigation failed")
)

// RenderedSite is the raw output of a headless website fetch.
type RenderedSite struct {
	URL      string
	Title    string
	BodyText string
}

// WebsiteRepository renders a facility's own website, used by the
// enrichment pass for JS-heavy clinic sites that plain GET cannot read.
type WebsiteRepository interface {
	Render(ctx context.Context, url string) (*RenderedSite, error)
}
