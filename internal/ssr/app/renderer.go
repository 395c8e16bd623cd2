package app

import (
	"context"
)

//go:generate mockgen -package=mock -source=renderer.go -destination=mock/renderer.go

// DataSource is the request-scoped data client visible to page components
type DataSource interface {
	Query(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error
}

// RouteContext collects routing outcomes produced while rendering.
// A non-empty RedirectURL means the response must be a redirect.
type RouteContext struct {
	RedirectURL string
	StatusCode  int
}

func (rc *RouteContext) Redirect(url string) {
	rc.RedirectURL = url
}

func (rc *RouteContext) SetStatus(code int) {
	rc.StatusCode = code
}

// Page is the rendered markup fragment plus head metadata
type Page struct {
	Markup string
	Title  string
}

// Renderer renders the application for location.
// data, route and styles are scoped to a single request.
type Renderer interface {
	Render(ctx context.Context, location string, data DataSource, route *RouteContext, styles *StyleSheet) (*Page, error)
}
