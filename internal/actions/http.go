package actions

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shaiso/avantix/internal/engine"
)

const (
	// ActionHTTPRequest — HTTP запрос.
	ActionHTTPRequest = "http.request"

	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// HTTPAction выполняет HTTP запрос.
//
// Параметры (строки рендерятся как шаблоны по ExecContext):
//
//	{
//	    "method": "POST",
//	    "url": "https://api.example.com/data",
//	    "headers": {"Authorization": "Bearer {{ .Vars.token }}"},
//	    "body": {"name": "{{ .Vars.user }}"},
//	    "follow_redirects": true,
//	    "validate_ssl": true,
//	    "timeout_sec": 30,
//	    "fail_on_status": true,
//	    "save_as": "response"
//	}
//
// Если задан save_as, ответ сохраняется в ExecContext:
//
//	{"status_code": 200, "headers": {...}, "body": {...}}
//
// При fail_on_status (по умолчанию) статус >= 400 — ошибка шага.
type HTTPAction struct {
	transport  http.RoundTripper
	transports *httpTransports
}

// httpTransports — общие транспорты http.request: пул соединений
// переиспользуется между шагами и run.
type httpTransports struct {
	verified   *http.Transport
	unverified *http.Transport
}

func newHTTPTransports() *httpTransports {
	verified := http.DefaultTransport.(*http.Transport).Clone()
	unverified := http.DefaultTransport.(*http.Transport).Clone()
	unverified.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //#nosec G402 -- validate_ssl: false задаётся автором flow
	return &httpTransports{verified: verified, unverified: unverified}
}

// pick возвращает транспорт по validate_ssl.
func (t *httpTransports) pick(validateSSL bool) *http.Transport {
	if validateSSL {
		return t.verified
	}
	return t.unverified
}

// CloseIdleConnections закрывает простаивающие соединения обоих транспортов.
func (t *httpTransports) CloseIdleConnections() {
	t.verified.CloseIdleConnections()
	t.unverified.CloseIdleConnections()
}

// sharedTransports используется HTTPAction, созданным без Register.
var sharedTransports = sync.OnceValue(newHTTPTransports)

// httpParams — разобранные параметры HTTP запроса.
type httpParams struct {
	Method          string
	URL             string
	Headers         map[string]string
	Body            any
	FollowRedirects bool
	ValidateSSL     bool
	TimeoutSec      int
	FailOnStatus    bool
	SaveAs          string
}

// Execute выполняет запрос.
func (a *HTTPAction) Execute(ctx context.Context, ec *engine.ExecContext, params map[string]any) error {
	rendered, err := engine.RenderParams(params, engine.NewTemplateData(ec))
	if err != nil {
		return fmt.Errorf("%s: %w", ActionHTTPRequest, err)
	}

	p, err := parseHTTPParams(rendered)
	if err != nil {
		return err
	}
	if a.transport != nil && !p.ValidateSSL {
		return invalidParams(ActionHTTPRequest, "validate_ssl: false is not supported with a custom transport")
	}

	req, err := buildRequest(ctx, p)
	if err != nil {
		return invalidParams(ActionHTTPRequest, "build request: %v", err)
	}

	resp, err := a.client(p).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ActionHTTPRequest, ctx.Err())
		}
		return fmt.Errorf("%s: %w", ActionHTTPRequest, err)
	}
	defer resp.Body.Close()

	result, err := parseResponse(resp)
	if err != nil {
		return fmt.Errorf("%s: %w", ActionHTTPRequest, err)
	}

	if p.SaveAs != "" {
		ec.Set(p.SaveAs, result)
	}

	if p.FailOnStatus && resp.StatusCode >= http.StatusBadRequest {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       fmt.Sprint(result["body"]),
		}
	}
	return nil
}

// parseHTTPParams разбирает и проверяет параметры.
func parseHTTPParams(params map[string]any) (*httpParams, error) {
	p := &httpParams{
		Method:          ParamString(params, "method"),
		URL:             ParamString(params, "url"),
		Headers:         ParamMapString(params, "headers"),
		Body:            params["body"],
		FollowRedirects: ParamBool(params, "follow_redirects", true),
		ValidateSSL:     ParamBool(params, "validate_ssl", true),
		TimeoutSec:      ParamInt(params, "timeout_sec"),
		FailOnStatus:    ParamBool(params, "fail_on_status", true),
		SaveAs:          ParamString(params, "save_as"),
	}

	if p.URL == "" {
		return nil, invalidParams(ActionHTTPRequest, "url is required")
	}
	if p.TimeoutSec < 0 {
		return nil, invalidParams(ActionHTTPRequest, "timeout_sec must be non-negative")
	}

	if p.Method == "" {
		p.Method = http.MethodGet
	}
	p.Method = strings.ToUpper(p.Method)

	if p.Headers == nil {
		p.Headers = make(map[string]string)
	}

	return p, nil
}

// client создаёт HTTP клиент с настройками запроса.
func (a *HTTPAction) client(p *httpParams) *http.Client {
	timeout := defaultHTTPTimeout
	if p.TimeoutSec > 0 {
		timeout = time.Duration(p.TimeoutSec) * time.Second
	}

	var checkRedirect func(*http.Request, []*http.Request) error
	if !p.FollowRedirects {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	transport := a.transport
	if transport == nil {
		transports := a.transports
		if transports == nil {
			transports = sharedTransports()
		}
		transport = transports.pick(p.ValidateSSL)
	}

	return &http.Client{
		Timeout:       timeout,
		CheckRedirect: checkRedirect,
		Transport:     transport,
	}
}

// buildRequest создаёт HTTP запрос.
func buildRequest(ctx context.Context, p *httpParams) (*http.Request, error) {
	var bodyReader io.Reader

	if p.Body != nil {
		bodyBytes, err := serializeBody(p.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if _, ok := p.Headers["Content-Type"]; !ok {
			p.Headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range p.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// serializeBody сериализует body в bytes.
func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// parseResponse читает ответ в map для ExecContext.
func parseResponse(resp *http.Response) (map[string]any, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			body = string(bodyBytes)
		}
	} else {
		body = string(bodyBytes)
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        body,
	}, nil
}

// HTTPError — ответ со статусом ошибки.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}
