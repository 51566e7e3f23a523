package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind clasifica los fallos de colaboradores externos en un enum
// cerrado. La clase se resuelve UNA vez, en la frontera del adapter; el
// resto del código decide por Kind y nunca re-parsea texto de error.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrRateLimited
	ErrServer
	ErrNetwork
	ErrClient
	ErrInsufficientBalance
	ErrNotFound
)

// String devuelve el nombre de la clase para los logs.
func (k ErrorKind) String() string {
	switch k {
	case ErrRateLimited:
		return "rate_limited"
	case ErrServer:
		return "server_error"
	case ErrNetwork:
		return "network"
	case ErrClient:
		return "client_error"
	case ErrInsufficientBalance:
		return "insufficient_balance"
	case ErrNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// APIError es un error de API externa con su clase ya resuelta.
type APIError struct {
	Kind   ErrorKind
	Status int // HTTP status si aplica, 0 para fallos de red
	Msg    string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api error (%s, HTTP %d): %s", e.Kind, e.Status, e.Msg)
	}
	return fmt.Sprintf("api error (%s): %s", e.Kind, e.Msg)
}

// Retryable devuelve true para las clases transitorias: rate limiting,
// errores de servidor y fallos de red. El resto propaga sin reintento.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case ErrRateLimited, ErrServer, ErrNetwork:
		return true
	}
	return false
}

// ClassifyStatus construye el APIError para una respuesta HTTP no-2xx.
func ClassifyStatus(status int, body string) *APIError {
	kind := ErrClient
	switch {
	case status == 429:
		kind = ErrRateLimited
	case status >= 500:
		kind = ErrServer
	case status == 404:
		kind = ErrNotFound
	case isInsufficientBalance(body):
		kind = ErrInsufficientBalance
	}
	return &APIError{Kind: kind, Status: status, Msg: truncateBody(body)}
}

// ClassifyOrderReject construye el APIError para un rechazo del matching
// engine (HTTP 200 con success=false y errorMsg). El caso que importa es el
// de balance: intentar vender una posición que el exchange ya no tiene
// responde "not enough balance", la señal de que se cerró fuera del bot.
func ClassifyOrderReject(msg string) *APIError {
	kind := ErrClient
	if isInsufficientBalance(msg) {
		kind = ErrInsufficientBalance
	}
	return &APIError{Kind: kind, Msg: truncateBody(msg)}
}

// isInsufficientBalance detecta el "not enough balance / allowance" del
// broker por substring. Shim de compatibilidad: el CLOB no expone un código
// estable para este caso, así que el match textual vive solo aquí.
func isInsufficientBalance(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "not enough balance") ||
		strings.Contains(lower, "insufficient balance") ||
		strings.Contains(lower, "insufficient allowance")
}

func truncateBody(body string) string {
	const maxLen = 200
	if len(body) > maxLen {
		return body[:maxLen]
	}
	return body
}

// KindOf extrae la clase de un error; ErrUnknown si no es un APIError.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ErrUnknown
}

// Retryable informa si un error merece reintento con backoff. Los errores
// que no son APIError se tratan como fallos de red (timeouts, conexiones
// cortadas) y por tanto se reintentan.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}
