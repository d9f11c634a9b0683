package openaiclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3/responses"
	"github.com/tidwall/sjson"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbridge", "openai")

// createResponse sends the request to /responses and parses streaming or non-streaming reply.
func (c *Client) createResponse(ctx context.Context, payload *responses.ResponseNewParams) (*responses.Response, error) { //nolint:lll,cyclop
	// if payload.StreamingFunc != nil || payload.StreamingReasoningFunc != nil {
	// 	payload.Stream = true
	// }

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	u := c.buildURL("/responses", payload.Model)
	logger.ContextKV(ctx, xlog.DEBUG, "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	c.setHeaders(req)

	r, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = r.Body.Close() }()

	if r.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("API returned unexpected status code: %d", r.StatusCode)
		if r.StatusCode == http.StatusNotFound {
			msg += ": url: " + u
		}
		var errResp errorMessage
		if err := json.NewDecoder(r.Body).Decode(&errResp); err != nil {
			return nil, errors.New(msg)
		}
		return nil, errors.Errorf("%s: %s", msg, errResp.Error.Message)
	}

	// TODO
	// if payload.Stream {
	// 	return parseStreamingResponses(ctx, r, payload)
	// }

	// read body
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	var resp responses.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return &resp, nil
}

// streamedResponseEvent is the subset of a Responses API stream event the
// client consumes. Text deltas carry delta; terminal events carry the full
// response object.
type streamedResponseEvent struct {
	Type     string              `json:"type"`
	Delta    string              `json:"delta,omitempty"`
	Response *responses.Response `json:"response,omitempty"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// createStreamingResponse sends the request to /responses with stream enabled
// and consumes the SSE stream until the terminal event.
func (c *Client) createStreamingResponse(
	ctx context.Context,
	payload *responses.ResponseNewParams,
	streamFunc func(ctx context.Context, chunk []byte) error,
) (*responses.Response, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	// ResponseNewParams has no stream field; the SDK injects it per call mode.
	bodyBytes, err = sjson.SetBytes(bodyBytes, "stream", true)
	if err != nil {
		return nil, errors.Wrap(err, "set stream flag")
	}

	u := c.buildURL("/responses", payload.Model)
	logger.ContextKV(ctx, xlog.DEBUG, "url", u, "stream", true)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	r, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = r.Body.Close() }()

	if r.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("API returned unexpected status code: %d", r.StatusCode)
		if r.StatusCode == http.StatusNotFound {
			msg += ": url: " + u
		}
		var errResp errorMessage
		if err := json.NewDecoder(r.Body).Decode(&errResp); err != nil {
			return nil, errors.New(msg)
		}
		return nil, errors.Errorf("%s: %s", msg, errResp.Error.Message)
	}

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var final *responses.Response
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var evt streamedResponseEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return nil, errors.Wrap(err, "decode stream event")
		}

		switch evt.Type {
		case "response.output_text.delta":
			if streamFunc != nil && evt.Delta != "" {
				if err := streamFunc(ctx, []byte(evt.Delta)); err != nil {
					return nil, errors.Wrap(err, "stream func")
				}
			}
		case "response.completed", "response.incomplete", "response.failed":
			if evt.Response != nil {
				final = evt.Response
			}
		case "error":
			if evt.Error != nil {
				return nil, errors.Newf("stream error: %s", evt.Error.Message)
			}
			return nil, errors.New("stream error")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read stream")
	}
	if final == nil {
		return nil, errors.New("stream ended without a terminal response event")
	}
	return final, nil
}
