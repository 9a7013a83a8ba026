package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// PassengerDataPath is collector endpoint accepting updates
const PassengerDataPath = "/api/passenger-data"

// HTTPSender posts updates as JSON to the collector
type HTTPSender struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSender creates sender for collector at serverURL (e.g. http://localhost:5000)
func NewHTTPSender(serverURL string, client *http.Client) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{
		endpoint: strings.TrimRight(serverURL, "/") + PassengerDataPath,
		client:   client,
	}
}

// Send posts update. Any status other than 200 is an error.
func (sender *HTTPSender) Send(ctx context.Context, update Update) error {
	body, err := json.Marshal(update)
	if err != nil {
		return errors.Wrap(err, "can't encode update")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sender.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "can't prepare request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := sender.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("collector responded %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
