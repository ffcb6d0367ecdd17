package config

import (
	"errors"
	"net/http"
	"strings"
)

var errInvalidHeaderParameter = errors.New("invalid syntax specified as header parameter")

// ParseHeaderString parses "Name: value" strings into headers
func ParseHeaderString(customHeaders []string) (http.Header, error) {
	headers := http.Header{}
	for _, keyValueString := range customHeaders {
		keyValue := strings.SplitN(keyValueString, ":", 2)
		if len(keyValue) != 2 {
			return nil, errInvalidHeaderParameter
		}

		name := strings.TrimSpace(keyValue[0])
		if name == "" {
			return nil, errInvalidHeaderParameter
		}

		headers.Add(name, strings.TrimSpace(keyValue[1]))
	}

	return headers, nil
}
