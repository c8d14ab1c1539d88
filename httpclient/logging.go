package httpclient

import (
	nethttp "net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gaborage/go-netkit/logger"
	"github.com/gaborage/go-netkit/request"
)

const (
	msgRequest  = "REST client request"
	msgResponse = "REST client response"
	msgPayload  = " payload"
)

var headerFilter = logger.NewSensitiveDataFilter(logger.DefaultFilterConfig())

// logRequest logs the outgoing request under the send category, plus a
// payload event when LogPayloads is enabled. Query values are masked unless
// their key is in public, the caller's own URL parameters.
func (m *Manager) logRequest(req *nethttp.Request, body []byte, requestID string, public map[string]string) {
	event := logger.Network(m.logger, logger.CategorySend).
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", redactedURL(req.URL, public)).
		Str("request_id", requestID)

	if len(req.Header) > 0 {
		event = event.Int("header_count", len(req.Header))
	}
	if len(body) > 0 {
		event = event.Int("body_size", len(body))
	}
	event.Msg(msgRequest)

	if !m.config.LogPayloads {
		return
	}

	preview, truncated := m.preview(body)
	m.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("request_id", requestID).
		Interface("headers", flattenHeaders(req.Header)).
		Int("body_size", len(body)).
		Str("body_truncated", truncated).
		Bytes("body_preview", preview).
		Msg(msgRequest + msgPayload)
}

// logResponse logs a received response under category.
func (m *Manager) logResponse(resp *Response, requestID string, category logger.Category) {
	event := logger.Network(m.logger, category).
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Str("request_id", requestID)

	if len(resp.Body) > 0 {
		event = event.Int("body_size", len(resp.Body))
	}
	event.Msg(msgResponse)

	if !m.config.LogPayloads {
		return
	}

	preview, truncated := m.preview(resp.Body)
	m.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Interface("headers", flattenHeaders(resp.Headers)).
		Int("body_size", len(resp.Body)).
		Str("body_truncated", truncated).
		Bytes("body_preview", preview).
		Msg(msgResponse + msgPayload)
}

// logFailure logs a request that ended without a usable response.
func (m *Manager) logFailure(d request.Descriptor, status int, err error) {
	event := logger.Network(m.logger, logger.CategoryFail).
		Str("request", d.Description()).
		Err(err)
	if status > 0 {
		event = event.Int("status", status)
	}
	event.Msg("REST client request failed")
}

func (m *Manager) preview(body []byte) ([]byte, string) {
	limit := m.config.MaxPayloadLogBytes
	if limit <= 0 {
		limit = DefaultMaxPayloadLogBytes
	}
	if len(body) > limit {
		return body[:limit], "true"
	}
	return body, "false"
}

// flattenHeaders keeps the first value per header and masks credentials.
func flattenHeaders(h nethttp.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return headerFilter.FilterHeaders(out)
}

// redactedURL renders u with credential query values replaced by the mask.
// Keys outside public came from a credential provider; public keys are still
// masked when the filter treats them as sensitive.
func redactedURL(u *url.URL, public map[string]string) string {
	if u.RawQuery == "" {
		return u.String()
	}

	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		_, plain := public[k]
		for _, v := range query[k] {
			value := logger.DefaultMaskValue
			if plain && headerFilter.FilterString(k, v) == v {
				value = url.QueryEscape(v)
			}
			parts = append(parts, url.QueryEscape(k)+"="+value)
		}
	}

	redacted := *u
	redacted.RawQuery = ""
	redacted.ForceQuery = false
	return redacted.String() + "?" + strings.Join(parts, "&")
}
