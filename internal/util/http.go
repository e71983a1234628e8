// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"context"
	"net/http"
	"time"
)

// UserAgent is sent with every request made by HttpGetResponse unless headers set one
var UserAgent = "archinstall"

// HttpGetResponse performs a GET request using client, or http.DefaultClient when nil. A zero
// timeout relies on ctx alone. The returned cancel function must be called once the body is consumed
func HttpGetResponse(ctx context.Context, client *http.Client, url string, timeout time.Duration, headers http.Header) (*http.Response, context.CancelFunc, error) {
	if client == nil {
		client = http.DefaultClient
	}

	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	for k, v := range headers {
		for _, value := range v {
			req.Header.Add(k, value)
		}
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	return resp, cancel, nil
}
