package obs

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Unmatched labels requests that no route handled, keeping metric
// cardinality bounded.
const Unmatched = "unmatched"

// Route returns the chi pattern that served r. chi fills the shared route
// context while routing, so middleware must call it after next has run.
func Route(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return Unmatched
}
