package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/logging"
)

// maxErrorBody bounds how much of an error response is kept in the message.
const maxErrorBody = 512

// DecodeResponse decodes a JSON response into the target structure.
// Non-2xx responses become *errors.APIError. A nil target discards the body.
func DecodeResponse(resp *http.Response, service string, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := string(body)
		if len(message) > maxErrorBody {
			message = message[:maxErrorBody]
		}
		endpoint := ""
		if resp.Request != nil && resp.Request.URL != nil {
			endpoint = resp.Request.URL.Path
		}
		return &errors.APIError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Message:    message,
			Endpoint:   endpoint,
		}
	}

	if target == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}

	return nil
}
