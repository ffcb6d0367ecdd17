package leafless

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const contentTypeJSON = "application/json"

// Response is the value returned by a handler. It is built with Empty, Raw,
// Text, Typed, TypedValue or JSON; a nil Response is the same as Empty.
type Response interface {
	// encode returns the content type, if any, and the body to write.
	encode() (string, []byte, error)
}

type emptyResponse struct{}

func (emptyResponse) encode() (string, []byte, error) {
	return "", nil, nil
}

type rawResponse []byte

func (r rawResponse) encode() (string, []byte, error) {
	return "", r, nil
}

type typedResponse struct {
	contentType string
	body        []byte
}

func (r typedResponse) encode() (string, []byte, error) {
	return r.contentType, r.body, nil
}

type jsonResponse struct {
	contentType string
	value       interface{}
}

func (r jsonResponse) encode() (string, []byte, error) {
	body, err := encodeJSON(r.value)
	if err != nil {
		return "", nil, err
	}

	return r.contentType, body, nil
}

// Empty ends the response without a body.
func Empty() Response {
	return emptyResponse{}
}

// Raw writes body verbatim without setting a content type.
func Raw(body []byte) Response {
	return rawResponse(body)
}

// Text writes s verbatim without setting a content type.
func Text(s string) Response {
	return rawResponse(s)
}

// Typed writes body verbatim with the declared content type.
func Typed(contentType string, body []byte) Response {
	return typedResponse{contentType: contentType, body: body}
}

// TypedValue writes v encoded as JSON with the declared content type.
func TypedValue(contentType string, v interface{}) Response {
	return jsonResponse{contentType: contentType, value: v}
}

// JSON writes v encoded as JSON with an application/json content type.
func JSON(v interface{}) Response {
	return jsonResponse{contentType: contentTypeJSON, value: v}
}

// encodeJSON encodes v without escaping HTML characters and without the
// trailing newline added by json.Encoder.
func encodeJSON(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("json encoding failed: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// encodeResponse returns the content type and body of res. A nil res is
// encoded as Empty.
func encodeResponse(res Response) (string, []byte, error) {
	if res == nil {
		res = Empty()
	}

	return res.encode()
}

// writeResponse writes an encoded response onto w using status, or 200 when
// status is 0. An empty contentType leaves the header untouched.
func writeResponse(w http.ResponseWriter, status int, contentType string, body []byte) error {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if len(body) == 0 {
		return nil
	}

	_, err := w.Write(body)
	return err
}
