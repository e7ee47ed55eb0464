package conv

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// RouteDescription is the serializable form of one mounted route.
type RouteDescription struct {
	Method string     `json:"method" yaml:"method"`
	Path   string     `json:"path" yaml:"path"`
	Params []Property `json:"params,omitempty" yaml:"params,omitempty"`
}

// Describe returns the full mounted route table, controllers in lookup
// order and routes in specificity order.
func (d *Dispatcher) Describe() []RouteDescription {
	d.mu.Lock()
	mounts := d.mounts
	d.mu.Unlock()

	var table []RouteDescription
	for _, c := range mounts {
		for _, rt := range c.Routes() {
			table = append(table, RouteDescription{
				Method: rt.Method,
				Path:   rt.Pathname,
				Params: rt.Schema.Props,
			})
		}
	}
	return table
}

// WriteRoutes writes the route table as YAML.
func (d *Dispatcher) WriteRoutes(w io.Writer) error {
	return yaml.NewEncoder(w).Encode(d.Describe())
}

// RoutesHandler returns a handler serving the route table: YAML when the
// request path ends in .yaml or .yml, JSON otherwise.
func (d *Dispatcher) RoutesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := d.Describe()

		if strings.HasSuffix(r.URL.Path, ".yaml") || strings.HasSuffix(r.URL.Path, ".yml") {
			w.Header().Set("Content-Type", "application/yaml")
			//nolint:errcheck // best-effort after WriteHeader
			yaml.NewEncoder(w).Encode(table)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,errchkjson // best-effort after WriteHeader
		json.NewEncoder(w).Encode(table)
	})
}
