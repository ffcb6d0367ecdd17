package leafless

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrHandlerIsSlice is returned when a slice or array is registered as a handler
	ErrHandlerIsSlice = errors.New("handler can't be an array")
	// ErrUnsupportedHandler is returned when a handler is neither a method set nor a factory
	ErrUnsupportedHandler = errors.New("route is expecting handler to be a factory or a method set")
	// ErrNilHandler is returned when a nil handler or an empty factory is registered
	ErrNilHandler = errors.New("handler can't be nil")
)

// Method is one of the HTTP methods a handler can respond to.
type Method int

// Supported methods. The zero value is not a valid method.
const (
	GET Method = iota + 1
	HEAD
	POST
	PUT
	PATCH
	DELETE
	OPTIONS
	CONNECT
	TRACE
)

var methodNames = map[Method]string{
	GET:     "GET",
	HEAD:    "HEAD",
	POST:    "POST",
	PUT:     "PUT",
	PATCH:   "PATCH",
	DELETE:  "DELETE",
	OPTIONS: "OPTIONS",
	CONNECT: "CONNECT",
	TRACE:   "TRACE",
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, len(methodNames))
	for method, name := range methodNames {
		m[name] = method
	}
	return m
}()

// ParseMethod looks up a request method case-insensitively.
func ParseMethod(name string) (Method, bool) {
	m, ok := methodsByName[strings.ToUpper(name)]
	return m, ok
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}

	return fmt.Sprintf("Method(%d)", int(m))
}

// HandlerFunc serves a single method of a route. It may block for as long as
// it needs to; the dispatcher waits for its result before serializing it.
type HandlerFunc func(ctx *Context) (Response, error)

// Methods maps request methods to the functions serving them.
type Methods map[Method]HandlerFunc

// Handler is a route handler descriptor. The only implementations are
// Shared and Factory.
type Handler interface {
	instance() Methods
}

// Shared is a handler whose methods are used by every request hitting the
// route. Implementations must keep per-request data in the Context.
type Shared Methods

func (s Shared) instance() Methods {
	return Methods(s)
}

// Factory is a handler producing a fresh set of methods for every request.
type Factory func() Methods

func (f Factory) instance() Methods {
	return f()
}

// handlerOf converts the values accepted by Server.Route into a Handler.
func handlerOf(v interface{}) (Handler, error) {
	switch h := v.(type) {
	case nil:
		return nil, ErrNilHandler
	case Shared:
		if h == nil {
			return nil, ErrNilHandler
		}
		return h, nil
	case Factory:
		if h == nil {
			return nil, ErrNilHandler
		}
		return h, nil
	case Methods:
		if h == nil {
			return nil, ErrNilHandler
		}
		return Shared(h), nil
	case func() Methods:
		if h == nil {
			return nil, ErrNilHandler
		}
		return Factory(h), nil
	case Handler:
		return h, nil
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return nil, ErrHandlerIsSlice
	}

	return nil, fmt.Errorf("%w, found '%T'", ErrUnsupportedHandler, v)
}
