// Package page renders the greeting page.
package page

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"strings"
)

//go:embed index.html
var indexHTML string

// View is the data the page template is rendered with.
type View struct {
	Address string
	Owner   string
	Active  int64
	Total   int64
}

// Renderer executes the embedded page template.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("index").Parse(indexHTML)
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Render(w io.Writer, v View) error {
	return r.tmpl.Execute(w, v)
}

// ClientAddress returns the caller's IP address. With trustForwarded the
// first hop of X-Forwarded-For wins; otherwise the host part of RemoteAddr
// is used. When neither yields anything, placeholder is returned.
func ClientAddress(r *http.Request, trustForwarded bool, placeholder string) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return placeholder
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		if host == "" {
			return placeholder
		}
		return host
	}
	// No port: either a bare IP or a bracketed IPv6 literal.
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}
