package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Kind classifies a backend error
type Kind int

const (
	KindUnknown Kind = iota
	KindInsufficientBalance
	KindInsufficientLiquidity
	KindUnsupportedChain
	KindUnsupportedToken
	KindAuthenticationRequired
	KindInvalidAPIKey
	KindInvalidSignature
	KindNoPathFound
	KindNotFound
	KindRateLimited
	KindServerError
	KindValidationError
)

// String returns the snake_case label of the kind, also used as a metric label
func (k Kind) String() string {
	switch k {
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindInsufficientLiquidity:
		return "insufficient_liquidity"
	case KindUnsupportedChain:
		return "unsupported_chain"
	case KindUnsupportedToken:
		return "unsupported_token"
	case KindAuthenticationRequired:
		return "authentication_required"
	case KindInvalidAPIKey:
		return "invalid_api_key"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindNoPathFound:
		return "no_path_found"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindValidationError:
		return "validation_error"
	}
	return "unknown"
}

// Error is a classified backend error. It keeps the backend message and trace id.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status, zero for errors raised before a response
	Status  int
	TraceID string
	// ChainID and Token are set for unsupported chain and token errors
	ChainID uint64
	Token   common.Address
	// RetryAfter is the backend's hint for rate limited requests
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.TraceID != "" {
		fmt.Fprintf(&b, " [trace %s]", e.TraceID)
	}
	return b.String()
}

// Is matches another *Error of the same kind, so the sentinels below work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrInsufficientBalance    = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientLiquidity  = &Error{Kind: KindInsufficientLiquidity}
	ErrUnsupportedChain       = &Error{Kind: KindUnsupportedChain}
	ErrUnsupportedToken       = &Error{Kind: KindUnsupportedToken}
	ErrAuthenticationRequired = &Error{Kind: KindAuthenticationRequired}
	ErrInvalidAPIKey          = &Error{Kind: KindInvalidAPIKey}
	ErrInvalidSignature       = &Error{Kind: KindInvalidSignature}
	ErrNoPathFound            = &Error{Kind: KindNoPathFound}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrRateLimited            = &Error{Kind: KindRateLimited}
	ErrServerError            = &Error{Kind: KindServerError}
	ErrValidation             = &Error{Kind: KindValidationError}
)

// exact messages the backend returns for enumerated errors
var messageKinds = map[string]Kind{
	"Insufficient balance":       KindInsufficientBalance,
	"Insufficient liquidity":     KindInsufficientLiquidity,
	"Authentication is required": KindAuthenticationRequired,
	"Invalid API key":            KindInvalidAPIKey,
	"Invalid bundle signature":   KindInvalidSignature,
	"No Path Found":              KindNoPathFound,
	"Order bundle not found":     KindNotFound,
	"Unsupported chain ids":      KindUnsupportedChain,
}

var (
	unsupportedChainRe = regexp.MustCompile(`^Unsupported chain (\d+)$`)
	unsupportedTokenRe = regexp.MustCompile(`^Unsupported token (0x[0-9a-fA-F]{40})(?: on chain (\d+))?`)
)

type errorBody struct {
	Message string `json:"message"`
	Errors  []struct {
		Message string          `json:"message"`
		Context json.RawMessage `json:"context,omitempty"`
	} `json:"errors"`
	TraceID string `json:"traceId"`
}

// ParseError classifies a failed backend response. Enumerated messages are
// matched exactly, parameterized ones by pattern, and the rest by status.
// Unrecognized errors keep their message as KindUnknown.
func ParseError(status int, body []byte, header http.Header) *Error {
	e := &Error{Kind: KindUnknown, Status: status}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		e.TraceID = parsed.TraceID
		if len(parsed.Errors) > 0 && parsed.Errors[0].Message != "" {
			e.Message = parsed.Errors[0].Message
		} else {
			e.Message = parsed.Message
		}
	} else {
		e.Message = strings.TrimSpace(string(body))
	}

	if kind, ok := messageKinds[e.Message]; ok {
		e.Kind = kind
		return e
	}
	if m := unsupportedChainRe.FindStringSubmatch(e.Message); m != nil {
		e.Kind = KindUnsupportedChain
		e.ChainID, _ = strconv.ParseUint(m[1], 10, 64)
		return e
	}
	if m := unsupportedTokenRe.FindStringSubmatch(e.Message); m != nil {
		e.Kind = KindUnsupportedToken
		e.Token = common.HexToAddress(m[1])
		if m[2] != "" {
			e.ChainID, _ = strconv.ParseUint(m[2], 10, 64)
		}
		return e
	}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuthenticationRequired
	case status == http.StatusForbidden:
		e.Kind = KindInvalidAPIKey
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusUnprocessableEntity:
		e.Kind = KindValidationError
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	case status >= http.StatusInternalServerError:
		e.Kind = KindServerError
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// IsTransient returns true for errors worth retrying a read for: rate limits,
// server errors and transport failures. Classified client errors and context
// cancellation are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) {
		return true
	}
	var backendErr *Error
	if errors.As(err, &backendErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
