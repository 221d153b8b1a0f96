// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainrpc

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	contentTypeJSON = "application/json"
	idleConnTimeout = 90 * time.Second
)

var _ Transport = (*httpTransport)(nil)

// httpTransport posts one envelope per request. It never retries: a failed
// request is reported to the caller, who owns the retry decision.
type httpTransport struct {
	uri       string
	client    *http.Client
	header    http.Header
	readLimit int64
}

func newHTTPTransport(u *url.URL, o *dialOptions) *httpTransport {
	client := o.httpClient
	if client == nil {
		client = newHTTPClient()
	}
	return &httpTransport{
		uri:       u.String(),
		client:    client,
		header:    o.header.Clone(),
		readLimit: o.readLimit,
	}
}

// newHTTPClient sets no client timeout. Every call context carries the
// call's deadline, and a client timeout would cut off longer ones.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: true,
			IdleConnTimeout:   idleConnTimeout,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

func (t *httpTransport) SendRequest(ctx context.Context, req []byte) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uri, bytes.NewReader(req))
	if err != nil {
		return nil, ErrTransport.Wrapf("failed to create request: %s", err)
	}
	request.Header = t.header.Clone()
	request.Header.Set("Content-Type", contentTypeJSON)
	request.Header.Set("Accept", contentTypeJSON)

	resp, err := t.client.Do(request)
	if err != nil {
		return nil, ErrTransport.Wrapf("failed to issue request: %s", err)
	}
	defer CleanlyCloseBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ErrTransport.Wrapf("received status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.readLimit+1))
	if err != nil {
		return nil, ErrTransport.Wrapf("failed to read response: %s", err)
	}
	if int64(len(body)) > t.readLimit {
		return nil, ErrTransport.Wrapf("response exceeds %d bytes", t.readLimit)
	}
	return body, nil
}

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
