package asaas

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("asaas: not found")

type ErrorItem struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// APIError representa uma resposta != 2xx do Asaas
type APIError struct {
	StatusCode int         `json:"-"`
	Errors     []ErrorItem `json:"errors"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("asaas http %d", e.StatusCode)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, it := range e.Errors {
		msgs = append(msgs, it.Code+": "+it.Description)
	}
	return fmt.Sprintf("asaas http %d: %s", e.StatusCode, strings.Join(msgs, "; "))
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == 404 {
		return ErrNotFound
	}
	return nil
}
