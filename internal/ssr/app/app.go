package app

import (
	"context"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
)

const (
	routeRoot     = "root"
	routeEpisodes = "episodes"
	routeHello    = "hello"
)

// App is the page tree rendered on the server
type App struct {
	router *mux.Router
}

var _ Renderer = (*App)(nil)

func New() *App {
	r := mux.NewRouter()
	r.Path("/").Name(routeRoot)
	r.Path("/episodes").Name(routeEpisodes)
	r.Path("/hello/{uid}").Name(routeHello)
	return &App{router: r}
}

// Render matches location against the route table and renders the page.
// "/" redirects to "/episodes"; unmatched locations render a 404 page.
func (a *App) Render(ctx context.Context, location string, data DataSource, route *RouteContext, styles *StyleSheet) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", location, err)
	}

	styles.Add("App", layoutCSS)

	var (
		match mux.RouteMatch
		body  template.HTML
		title string
	)

	if !a.router.Match(req, &match) || match.Route == nil {
		route.SetStatus(http.StatusNotFound)
		body, title, err = renderNotFound(req.URL.Path, styles)
	} else {
		switch match.Route.GetName() {
		case routeRoot:
			route.Redirect("/episodes")
			return &Page{}, nil
		case routeEpisodes:
			body, title, err = renderEpisodes(ctx, data, styles)
		case routeHello:
			body, title, err = renderHello(match.Vars["uid"])
		}
	}
	if err != nil {
		return nil, err
	}

	markup, err := execute("layout", body)
	if err != nil {
		return nil, err
	}
	return &Page{Markup: string(markup), Title: title}, nil
}
