package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

// NewNtfy returns a notifier posting plain-text messages to endpoint.
func NewNtfy(endpoint string, timeout time.Duration) Service {
	return &ntfyService{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := formatMessage(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func formatMessage(event Event, payload Payload) (message, bool) {
	jobType := payload.str(KeyJobType)
	jobID := payload.str(KeyJobID)
	switch event {
	case EventJobDone:
		body := fmt.Sprintf("✅ %s job %s finished", jobType, jobID)
		if output := payload.str(KeyOutput); output != "" {
			body += "\nOutput: " + output
		}
		return message{
			title: "vidpipe - Job Done",
			body:  body,
			tags:  []string{"vidpipe", jobType, "done"},
		}, true
	case EventJobFailed:
		body := fmt.Sprintf("❌ %s job %s failed", jobType, jobID)
		if reason := payload.str(KeyError); reason != "" {
			body += ": " + reason
		}
		return message{
			title:    "vidpipe - Job Failed",
			body:     body,
			tags:     []string{"vidpipe", jobType, "failed"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title: "vidpipe - Test",
			body:  "🔔 Test notification from vidpipe",
			tags:  []string{"vidpipe", "test"},
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil || n.endpoint == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
