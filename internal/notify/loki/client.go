// Package loki mirrors consumed notification events into Grafana Loki so the
// delivery stream can be queried next to the service logs.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const pushTimeout = 5 * time.Second

// Client pushes single log lines to a Loki instance over the v1 push API.
type Client struct {
	pushURL string
	httpc   *http.Client
}

// New returns a client for the Loki base URL, e.g. http://localhost:3100.
func New(baseURL string) *Client {
	return &Client{
		pushURL: strings.TrimSuffix(baseURL, "/") + "/loki/api/v1/push",
		httpc:   &http.Client{Timeout: pushTimeout},
	}
}

type pushPayload struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Labels map[string]string `json:"stream"`
	// Values entries are [timestamp_ns, line] pairs.
	Values [][2]string `json:"values"`
}

// eventEnvelope picks out the event fields used for stream labels.
type eventEnvelope struct {
	UserID    string    `json:"userId"`
	EventType string    `json:"eventType"`
	CreatedAt time.Time `json:"createdAt"`
}

// PushEventJSON pushes one raw event payload, labelled with the event type
// and user and stamped with the event time. A payload that does not parse is
// still pushed, with the current time and base labels only.
func (c *Client) PushEventJSON(ctx context.Context, raw []byte) error {
	ts := time.Now().UTC()
	labels := map[string]string{}
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if !env.CreatedAt.IsZero() {
			ts = env.CreatedAt
		}
		if env.EventType != "" {
			labels["event_type"] = env.EventType
		}
		if env.UserID != "" {
			labels["user_id"] = env.UserID
		}
	}
	return c.Push(ctx, ts, string(raw), labels)
}

// Push sends a single line with the given labels. The job label is always
// set; label values are sanitized for Loki.
func (c *Client) Push(ctx context.Context, ts time.Time, line string, labels map[string]string) error {
	streamLabels := map[string]string{"job": "expert-pancake"}
	for k, v := range labels {
		if s := sanitizeLabel(v); s != "" {
			streamLabels[k] = s
		}
	}
	payload, err := json.Marshal(pushPayload{
		Streams: []stream{{
			Labels: streamLabels,
			Values: [][2]string{{strconv.FormatInt(ts.UnixNano(), 10), line}},
		}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pushURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}

// sanitizeLabel keeps [a-zA-Z0-9_-:] and replaces everything else, so event
// fields cannot smuggle label syntax into the stream.
func sanitizeLabel(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '-', r == ':':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(v))
}
