package notify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Notifier delivers out-of-band alert messages.
type Notifier interface {
	Notify(message string) error
}

// Ntfy publishes alerts to an ntfy topic with a plain POST of the message
// body.
type Ntfy struct {
	baseURL string
	topic   string
	httpc   *http.Client
	logger  *log.Logger
}

// Noop swallows alerts. Used when no topic is configured.
type Noop struct{}

func (Noop) Notify(string) error { return nil }

// New returns an ntfy publisher for the topic, or a Noop notifier when the
// topic is empty.
func New(baseURL, topic string, logger *log.Logger) Notifier {
	if topic == "" {
		logger.Debug("no ntfy topic configured, alerts disabled")
		return Noop{}
	}
	if baseURL == "" {
		baseURL = "https://ntfy.sh"
	}
	return &Ntfy{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		topic:   topic,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (n *Ntfy) Notify(message string) error {
	resp, err := n.httpc.Post(n.baseURL+"/"+n.topic, "text/plain", strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("publishing notification: unexpected status %d", resp.StatusCode)
	}
	n.logger.Debug("published notification", "topic", n.topic)
	return nil
}
