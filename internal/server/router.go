package server

import (
	"net/http"
	"strings"
)

// BasicRouter dispatches the migration service's small route table over an
// [http.ServeMux]. Every registration is wrapped in the middleware stack and
// guarded by a method check, since each endpoint serves exactly one verb.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
}

func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use appends middleware to the stack. Call before Handle; routes registered
// earlier are not rewrapped.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for the given method and path. Requests arriving
// with any other method are answered with 405.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	wrapped := r.wrap(handler)

	r.mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		if !strings.EqualFold(req.Method, method) {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wrapped.ServeHTTP(w, req)
	})
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// wrap applies the middleware stack so the first middleware added is the
// outermost on the request path.
func (r *BasicRouter) wrap(handler http.Handler) http.Handler {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}
	return handler
}
