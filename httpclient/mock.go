package httpclient

import (
	"context"
	"fmt"
	nethttp "net/http"
	"os"
	"sync/atomic"

	"github.com/gaborage/go-netkit/logger"
	"github.com/gaborage/go-netkit/request"
)

// Mock serves d from its MockFile instead of the network. The file content is
// returned verbatim with status 200.
func (m *Manager) Mock(_ context.Context, d request.Descriptor) (*Response, error) {
	start := m.now()
	callCount := atomic.AddInt64(&m.callCount, 1)

	if d.MockFile == "" {
		return nil, NewNoMockError(d.Description(), nil)
	}
	data, err := os.ReadFile(d.MockFile)
	if err != nil {
		return nil, NewNoMockError(d.Description(), err)
	}

	logger.Network(m.logger, logger.CategoryMock).
		Str("request", d.Description()).
		Str("file", d.MockFile).
		Int("body_size", len(data)).
		Msg("Serving mock response")

	return &Response{
		StatusCode: nethttp.StatusOK,
		Body:       data,
		Headers:    nethttp.Header{},
		Stats: Stats{
			ElapsedTime: m.now().Sub(start),
			CallCount:   callCount,
		},
	}, nil
}

// MockAs serves d from its MockFile and decodes the content into T.
func MockAs[T any](ctx context.Context, m *Manager, d request.Descriptor) (T, error) {
	var out T
	resp, err := m.Mock(ctx, d)
	if err != nil {
		return out, err
	}
	if err := m.decoder(resp.Body, &out); err != nil {
		return out, NewDecodableError(fmt.Sprintf("%T", out), err)
	}
	return out, nil
}
