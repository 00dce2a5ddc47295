package router

import (
	"strings"

	"github.com/valyala/fasthttp"
)

// RouteKey is the user value holding the matched route pattern, e.g.
// "/v1/messages/{id}/read". Unmatched requests carry none.
const RouteKey = "router.route"

// Router dispatches by method and path. Path segments written as {name}
// match any single segment and are exposed as user values.
type Router struct {
	routes   map[string][]route
	notFound fasthttp.RequestHandler
	// 405 instead of 404 when the path exists under another method
	methodNotAllowed fasthttp.RequestHandler
}

type route struct {
	pattern  string
	segments []segment
	handler  fasthttp.RequestHandler
}

type segment struct {
	name    string
	isParam bool
}

func New() *Router {
	return &Router{routes: make(map[string][]route)}
}

func (r *Router) Handler(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	path := string(ctx.Path())
	if rt, values, ok := r.lookup(method, path); ok {
		for k, v := range values {
			ctx.SetUserValue(k, v)
		}
		ctx.SetUserValue(RouteKey, rt.pattern)
		rt.handler(ctx)
		return
	}
	if r.methodNotAllowed != nil && r.pathKnown(method, path) {
		r.methodNotAllowed(ctx)
		return
	}
	if r.notFound != nil {
		r.notFound(ctx)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNotFound)
}

func (r *Router) GET(path string, h fasthttp.RequestHandler)    { r.add(fasthttp.MethodGet, path, h) }
func (r *Router) POST(path string, h fasthttp.RequestHandler)   { r.add(fasthttp.MethodPost, path, h) }
func (r *Router) PUT(path string, h fasthttp.RequestHandler)    { r.add(fasthttp.MethodPut, path, h) }
func (r *Router) DELETE(path string, h fasthttp.RequestHandler) { r.add(fasthttp.MethodDelete, path, h) }

func (r *Router) NotFound(h fasthttp.RequestHandler) { r.notFound = h }

func (r *Router) MethodNotAllowed(h fasthttp.RequestHandler) { r.methodNotAllowed = h }

// Routes lists "METHOD pattern" for every registration, in registration order per method.
func (r *Router) Routes() []string {
	var out []string
	for _, m := range []string{fasthttp.MethodGet, fasthttp.MethodPost, fasthttp.MethodPut, fasthttp.MethodDelete} {
		for _, rt := range r.routes[m] {
			out = append(out, m+" "+rt.pattern)
		}
	}
	return out
}

// Param returns the value bound to a {name} segment, or "".
func Param(ctx *fasthttp.RequestCtx, name string) string {
	if s, ok := ctx.UserValue(name).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// Route returns the matched pattern, or "" when nothing matched.
func Route(ctx *fasthttp.RequestCtx) string {
	s, _ := ctx.UserValue(RouteKey).(string)
	return s
}

func (r *Router) add(method, path string, h fasthttp.RequestHandler) {
	r.routes[method] = append(r.routes[method], route{pattern: path, segments: parse(path), handler: h})
}

// lookup prefers literal segments: routes are tried in registration order,
// so register /v1/messages/latest before /v1/messages/{id}.
func (r *Router) lookup(method, path string) (route, map[string]string, bool) {
	for _, rt := range r.routes[method] {
		if values, ok := match(path, rt.segments); ok {
			return rt, values, true
		}
	}
	return route{}, nil, false
}

func (r *Router) pathKnown(method, path string) bool {
	for m := range r.routes {
		if m == method {
			continue
		}
		if _, _, ok := r.lookup(m, path); ok {
			return true
		}
	}
	return false
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func parse(path string) []segment {
	parts := split(path)
	segs := make([]segment, len(parts))
	for i, part := range parts {
		if len(part) > 2 && strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			segs[i] = segment{name: part[1 : len(part)-1], isParam: true}
		} else {
			segs[i] = segment{name: part}
		}
	}
	return segs
}

func match(path string, segs []segment) (map[string]string, bool) {
	parts := split(path)
	if len(parts) != len(segs) {
		return nil, false
	}
	values := make(map[string]string)
	for i, seg := range segs {
		if seg.isParam {
			if parts[i] == "" {
				return nil, false
			}
			values[seg.name] = parts[i]
			continue
		}
		if seg.name != parts[i] {
			return nil, false
		}
	}
	return values, true
}
