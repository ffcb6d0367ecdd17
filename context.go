package leafless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"gitlab.com/leafless/leafless/internal/logging"
)

// DefaultMaxBodyBytes bounds the request body read by the Context body helpers
const DefaultMaxBodyBytes = 10 << 20

// ErrBodyTooLarge is returned by the body helpers when the request body
// exceeds the configured limit
var ErrBodyTooLarge = errors.New("request body too large")

// ErrInvalidStatus is the failure of a handler that set a status code outside
// of 100-999
var ErrInvalidStatus = errors.New("invalid response status code")

// Context is created for every dispatched request and handed to the handler.
// It must not be retained after the handler returns.
type Context struct {
	request      *http.Request
	writer       *trackingWriter
	url          *url.URL
	match        *Match
	query        url.Values
	status       int
	maxBodyBytes int64
}

func newContext(w http.ResponseWriter, r *http.Request, match *Match, u *url.URL, maxBodyBytes int64) *Context {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	return &Context{
		request:      r,
		writer:       &trackingWriter{ResponseWriter: w},
		url:          u,
		match:        match,
		maxBodyBytes: maxBodyBytes,
	}
}

// Request returns the underlying request.
func (c *Context) Request() *http.Request {
	return c.request
}

// Response returns the raw response writer. A handler writing to it directly
// should return Empty.
func (c *Context) Response() http.ResponseWriter {
	return c.writer
}

// Context returns the request's context.
func (c *Context) Context() context.Context {
	return c.request.Context()
}

// URL returns the parsed request URL.
func (c *Context) URL() *url.URL {
	return c.url
}

// Route returns the template that matched the request.
func (c *Context) Route() string {
	return c.match.Template
}

// Params returns the captured route parameters in template order.
func (c *Context) Params() Params {
	return c.match.Params
}

// Param returns the captured route parameter name.
func (c *Context) Param(name string) string {
	return c.match.Params.ByName(name)
}

// Query returns the parsed query string. Malformed pairs are dropped.
func (c *Context) Query() url.Values {
	if c.query == nil {
		c.query, _ = url.ParseQuery(c.url.RawQuery)
	}

	return c.query
}

// Header returns the response headers, to be sent along with the handler's
// Response.
func (c *Context) Header() http.Header {
	return c.writer.Header()
}

// Status sets the status code of the serialized response, 200 by default.
// Codes outside of 100-999 fail the request.
func (c *Context) Status(code int) {
	c.status = code
}

func validStatus(code int) bool {
	return code == 0 || (code >= 100 && code <= 999)
}

// Log returns a logger carrying request fields.
func (c *Context) Log() *logrus.Entry {
	return logging.LogRequest(c.request).WithField("route", c.match.Template)
}

// ContentType returns the media type of the request body and its parameters.
func (c *Context) ContentType() (string, map[string]string, error) {
	header := c.request.Header.Get("Content-Type")
	if header == "" {
		return "", nil, nil
	}

	return mime.ParseMediaType(header)
}

// Body reads the whole request body.
func (c *Context) Body() ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.request.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	if int64(len(body)) > c.maxBodyBytes {
		return nil, ErrBodyTooLarge
	}

	return body, nil
}

// DecodeJSON decodes the request body into v.
func (c *Context) DecodeJSON(v interface{}) error {
	body, err := c.Body()
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}

// Form parses url-encoded and multipart request bodies together with the
// query string.
func (c *Context) Form() (url.Values, error) {
	c.request.Body = http.MaxBytesReader(c.writer, c.request.Body, c.maxBodyBytes)

	mediaType, _, err := c.ContentType()
	if err != nil {
		return nil, err
	}

	if mediaType == "multipart/form-data" {
		err = c.request.ParseMultipartForm(c.maxBodyBytes)
	} else {
		err = c.request.ParseForm()
	}
	if err != nil {
		return nil, fmt.Errorf("parsing form: %w", err)
	}

	return c.request.Form, nil
}

// trackingWriter records whether the handler already wrote the response.
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *trackingWriter) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
	w.wroteHeader = true
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		w.wroteHeader = true
		f.Flush()
	}
}

// ReadFrom keeps the sendfile path of the underlying writer available to
// http.ServeContent.
func (w *trackingWriter) ReadFrom(src io.Reader) (int64, error) {
	w.wroteHeader = true

	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		return rf.ReadFrom(src)
	}

	return io.Copy(writerOnly{w.ResponseWriter}, src)
}

// writerOnly hides any ReadFrom method of the wrapped writer from io.Copy.
type writerOnly struct {
	io.Writer
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *trackingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
