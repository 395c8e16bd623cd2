package app

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
)

const episodesQuery = `query AllEpisodes {
  allEpisodes {
    id
    title
  }
}`

// Episode is one item of the allEpisodes query
type Episode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

var templates = template.Must(template.New("pages").Parse(`
{{define "layout"}}<div class="app"><header class="app-header"><a href="/episodes">Episodes</a></header><main class="app-main">{{.}}</main></div>{{end}}
{{define "episodes"}}<div><h2>Episodes:</h2>{{range .}}<div class="episode" data-id="{{.ID}}">{{.Title}}</div>{{end}}</div>{{end}}
{{define "hello"}}<div><div><h1>Hello {{.}}</h1></div></div>{{end}}
{{define "notfound"}}<div class="not-found"><h1>Not Found</h1><p>No page matches {{.}}</p></div>{{end}}
`))

const (
	layoutCSS   = `.app { font-family: sans-serif; margin: 0 auto; max-width: 960px; } .app-header { padding: 1em 0; }`
	episodeCSS  = `.episode { padding: 0.5em 0; border-bottom: 1px solid #eee; }`
	notFoundCSS = `.not-found { color: #a00; }`
)

func execute(name string, data interface{}) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

func renderEpisodes(ctx context.Context, data DataSource, styles *StyleSheet) (template.HTML, string, error) {
	var result struct {
		AllEpisodes []Episode `json:"allEpisodes"`
	}
	if err := data.Query(ctx, episodesQuery, nil, &result); err != nil {
		return "", "", fmt.Errorf("episodes query failed: %w", err)
	}

	styles.Add("Episode", episodeCSS)
	markup, err := execute("episodes", result.AllEpisodes)
	return markup, "", err
}

func renderHello(uid string) (template.HTML, string, error) {
	markup, err := execute("hello", uid)
	return markup, "Hello", err
}

func renderNotFound(location string, styles *StyleSheet) (template.HTML, string, error) {
	styles.Add("NotFound", notFoundCSS)
	markup, err := execute("notfound", location)
	return markup, "Not Found", err
}
