package leafless

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

const captureMarker = ':'

var (
	// ErrInvalidTemplate is returned for templates not starting with a slash
	// or holding an unnamed capture
	ErrInvalidTemplate = errors.New("invalid route template")
	// ErrDuplicateParam is returned when a template names the same capture twice
	ErrDuplicateParam = errors.New("duplicate route parameter")
)

// RouteError is returned when a route can't be registered.
type RouteError struct {
	Template string
	Err      error
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("route %q: %v", e.Template, e.Err)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

// Param is a single named segment captured from a request path.
type Param struct {
	Key   string
	Value string
}

// Params holds captured segments in the order they appear in the template.
type Params []Param

// ByName returns the value of the first param named name, or an empty string.
func (ps Params) ByName(name string) string {
	for _, p := range ps {
		if p.Key == name {
			return p.Value
		}
	}

	return ""
}

// Map returns the params as a map.
func (ps Params) Map() map[string]string {
	m := make(map[string]string, len(ps))
	for _, p := range ps {
		m[p.Key] = p.Value
	}

	return m
}

// MarshalJSON encodes params as a JSON object keeping template order.
func (ps Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')
	for i, p := range ps {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

type segment struct {
	value   string
	capture bool
}

type route struct {
	template string
	segments []segment
	handler  Handler
}

// Match is the result of resolving a path.
type Match struct {
	Template string
	Handler  Handler
	Params   Params
}

// Router maps path templates to handlers. Templates are matched segment by
// segment: a segment starting with ':' captures exactly one path segment,
// any other segment must be equal.
type Router struct {
	mu     sync.RWMutex
	routes []*route
	index  map[string]*route
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{index: make(map[string]*route)}
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	return segments
}

// decodeSegments unescapes every path segment, keeping the raw segment when
// it is not valid escaping. Splitting happens before decoding so that an
// escaped slash never creates a new segment.
func decodeSegments(parts []string) []string {
	decoded := make([]string, len(parts))
	for i, part := range parts {
		value, err := url.PathUnescape(part)
		if err != nil {
			value = part
		}
		decoded[i] = value
	}

	return decoded
}

func parseTemplate(template string) (string, []segment, error) {
	if !strings.HasPrefix(template, "/") {
		return "", nil, ErrInvalidTemplate
	}

	parts := splitPath(template)
	segments := make([]segment, 0, len(parts))
	seen := make(map[string]bool)

	for _, part := range parts {
		if part[0] != captureMarker {
			segments = append(segments, segment{value: part})
			continue
		}

		name := part[1:]
		if name == "" {
			return "", nil, ErrInvalidTemplate
		}
		if seen[name] {
			return "", nil, fmt.Errorf("%w: %s", ErrDuplicateParam, name)
		}
		seen[name] = true

		segments = append(segments, segment{value: name, capture: true})
	}

	return "/" + strings.Join(parts, "/"), segments, nil
}

// Register adds handler under template. Registering a template that is
// already known replaces its handler but keeps its position.
func (r *Router) Register(template string, handler Handler) error {
	_, err := r.register(template, handler)
	return err
}

// register reports whether template was new, rather than replacing an
// existing route.
func (r *Router) register(template string, handler Handler) (bool, error) {
	if handler == nil {
		return false, &RouteError{Template: template, Err: ErrNilHandler}
	}

	normalized, segments, err := parseTemplate(template)
	if err != nil {
		return false, &RouteError{Template: template, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.index[normalized]; ok {
		existing.handler = handler
		return false, nil
	}

	rt := &route{template: normalized, segments: segments, handler: handler}
	r.routes = append(r.routes, rt)
	r.index[normalized] = rt

	return true, nil
}

// Resolve finds the first registered template, in registration order,
// matching path.
func (r *Router) Resolve(path string) (*Match, bool) {
	parts := decodeSegments(splitPath(path))

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if params, ok := rt.match(parts); ok {
			return &Match{Template: rt.template, Handler: rt.handler, Params: params}, true
		}
	}

	return nil, false
}

// Routes returns the registered templates in registration order.
func (r *Router) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	templates := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		templates = append(templates, rt.template)
	}

	return templates
}

// Len returns the number of registered templates.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.routes)
}

func (rt *route) match(parts []string) (Params, bool) {
	if len(parts) != len(rt.segments) {
		return nil, false
	}

	var params Params
	for i, seg := range rt.segments {
		if !seg.capture {
			if seg.value != parts[i] {
				return nil, false
			}
			continue
		}

		params = append(params, Param{Key: seg.value, Value: parts[i]})
	}

	return params, true
}
