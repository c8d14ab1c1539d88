package httpclient

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-netkit/logger"
	"github.com/gaborage/go-netkit/request"
)

func TestMockServesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":42}`), 0o600))

	fakeLog := &fakeLogger{}
	transport := &countingTransport{status: http.StatusOK}
	m := NewBuilder(fakeLog).WithTransport(transport).Build()
	d := request.New(request.MethodGet, "api.example.com", "/users/42", request.WithMockFile(path))

	resp, err := m.Mock(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte(`{"id":42}`), resp.Body)

	got, err := MockAs[model](context.Background(), m, d)
	require.NoError(t, err)
	assert.Equal(t, model{ID: 42}, got)

	assert.Equal(t, int32(0), transport.calls.Load())
	assert.Len(t, fakeLog.eventsByCategory(logger.CategoryMock), 2)
}

func TestMockUnavailable(t *testing.T) {
	m := NewBuilder(logger.Nop()).Build()

	tests := []struct {
		name string
		d    request.Descriptor
	}{
		{name: "no file configured", d: request.New(request.MethodGet, "api.example.com", "/x")},
		{name: "missing file", d: request.New(request.MethodGet, "api.example.com", "/x", request.WithMockFile(filepath.Join(t.TempDir(), "absent.json")))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Mock(context.Background(), tt.d)
			assert.True(t, IsErrorType(err, NoMockError))
			assert.Contains(t, err.Error(), "GET - https://api.example.com/x")
		})
	}
}

func TestMockAsDecodableError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("<xml/>"), 0o600))
	m := NewBuilder(logger.Nop()).Build()

	_, err := MockAs[model](context.Background(), m, request.New(request.MethodGet, "api.example.com", "/x", request.WithMockFile(path)))
	assert.True(t, IsErrorType(err, DecodableError))
}
