package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-netkit/auth"
	"github.com/gaborage/go-netkit/httpclient/internal/tracking"
	"github.com/gaborage/go-netkit/logger"
	"github.com/gaborage/go-netkit/request"
)

var _ Downloader = (*Manager)(nil)

// DownloadOptions tunes a download.
type DownloadOptions struct {
	// Force replaces an existing destination file.
	Force bool
	// Progress receives the written fraction in [0, 1] as the body streams.
	// It is not called when the server sends no Content-Length.
	Progress func(fraction float64)
}

// Download streams the response body of d into destination and returns the
// number of bytes written. An existing destination is left untouched and
// reported as 0 bytes unless opts.Force is set. The body is written to a
// temporary file next to destination and renamed into place on success.
func (m *Manager) Download(ctx context.Context, d request.Descriptor, destination string, opts DownloadOptions) (int64, error) {
	atomic.AddInt64(&m.callCount, 1)

	if !opts.Force {
		if _, err := os.Stat(destination); err == nil {
			logger.Network(m.logger, logger.CategoryDownload).
				Str("request", d.Description()).
				Str("destination", destination).
				Msg("Download skipped; destination exists")
			return 0, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("stat %s: %w", destination, err)
		}
	}

	if m.config.PreflightRefresh && d.CanRefreshCredentials && d.Credentials != nil {
		auth.RefreshIfNeeded(ctx, m.logger, d.Credentials, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, d.TimeoutOr(m.downloadTimeout()))
	defer cancel()

	req, err := m.buildRequest(ctx, d)
	if err != nil {
		return 0, err
	}

	id := d.Description()
	ctx, span := tracking.StartRequest(ctx, req, id, 1)
	req = req.WithContext(ctx)
	host := req.URL.Hostname()

	if err := m.runRequestInterceptors(ctx, req); err != nil {
		tracking.EndRequest(ctx, span, req.Method, host, 0, 0, err)
		return 0, NewInterceptorError("request interceptor failed", "request", err)
	}

	release := m.registry.Register(id, cancel)
	defer release()

	m.logRequest(req, nil, requestIDOf(ctx, req), d.URLParameters)
	sent := m.now()

	httpResp, err := m.downloadTransport.Do(req)
	if err != nil {
		tracking.EndRequest(ctx, span, req.Method, host, 0, m.now().Sub(sent), err)
		m.logFailure(d, 0, err)
		return 0, NewUnknownResponseError("download failed", err)
	}
	defer httpResp.Body.Close()

	if err := m.runResponseInterceptors(ctx, req, httpResp); err != nil {
		tracking.EndRequest(ctx, span, req.Method, host, httpResp.StatusCode, m.now().Sub(sent), err)
		return 0, NewInterceptorError("response interceptor failed", "response", err)
	}

	if !IsSuccessStatus(httpResp.StatusCode) {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		tracking.EndRequest(ctx, span, req.Method, host, httpResp.StatusCode, m.now().Sub(sent), nil)
		m.logFailure(d, httpResp.StatusCode, nil)
		return 0, NewNetworkError(httpResp.StatusCode, nil)
	}

	written, err := writeAtomically(destination, httpResp.Body, httpResp.ContentLength, opts.Progress)
	elapsed := m.now().Sub(sent)
	if err != nil {
		tracking.EndRequest(ctx, span, req.Method, host, httpResp.StatusCode, elapsed, err)
		m.logFailure(d, httpResp.StatusCode, err)
		if ctx.Err() != nil {
			return 0, NewUnknownResponseError("download interrupted", err)
		}
		return 0, err
	}
	tracking.EndRequest(ctx, span, req.Method, host, httpResp.StatusCode, elapsed, nil)

	logger.Network(m.logger, logger.CategoryDownload).
		Str("request", id).
		Str("destination", destination).
		Int64("bytes", written).
		Dur("elapsed", elapsed).
		Msg("Download complete")
	return written, nil
}

// DownloadURL downloads a GET of rawURL into destination.
func (m *Manager) DownloadURL(ctx context.Context, rawURL, destination string, opts DownloadOptions) (int64, error) {
	d, err := request.FromURL(request.MethodGet, rawURL)
	if err != nil {
		return 0, mapBuildError(err)
	}
	return m.Download(ctx, d, destination, opts)
}

func (m *Manager) downloadTimeout() time.Duration {
	if m.config.DownloadTimeout > 0 {
		return m.config.DownloadTimeout
	}
	return m.config.Timeout
}

// writeAtomically copies r into a temporary file beside destination, then
// renames it into place.
func writeAtomically(destination string, r io.Reader, expected int64, progress func(float64)) (int64, error) {
	dir := filepath.Dir(destination)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destination)+"-*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	var w io.Writer = tmp
	if progress != nil && expected > 0 {
		w = &progressWriter{w: tmp, expected: expected, report: progress}
	}

	written, err := io.Copy(w, r)
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, destination); err != nil {
		return 0, fmt.Errorf("rename %s: %w", destination, err)
	}
	committed = true
	return written, nil
}

// progressWriter reports the written fraction after each write.
type progressWriter struct {
	w        io.Writer
	written  int64
	expected int64
	report   func(float64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	fraction := float64(p.written) / float64(p.expected)
	if fraction > 1 {
		fraction = 1
	}
	p.report(fraction)
	return n, err
}
