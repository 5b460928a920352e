package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls the face-verification microservice. The service compares
// the submitted selfie against enrolled faces for the candidate rolls;
// its JSON response is relayed to callers without interpretation beyond
// the verified flag.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, calls return a canned accepted
// result — used in dev when no face service is running.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

type verifyRequest struct {
	ClassID        string        `json:"class_id"`
	SessionID      string        `json:"session_id"`
	SelfieImageURL string        `json:"selfie_image_url"`
	Students       []studentRoll `json:"students"`
}

type studentRoll struct {
	Roll string `json:"roll"`
}

// VerifyFace posts the submission to /verify-face and returns the raw
// response body.
func (c *Client) VerifyFace(ctx context.Context, classID, sessionID, imageURL string, rolls []string) (json.RawMessage, error) {
	if c.Skip {
		return json.RawMessage(`{"verified":true,"skipped":true}`), nil
	}
	if imageURL == "" {
		return nil, fmt.Errorf("selfie image url required")
	}

	reqBody := verifyRequest{
		ClassID:        classID,
		SessionID:      sessionID,
		SelfieImageURL: imageURL,
	}
	for _, roll := range rolls {
		reqBody.Students = append(reqBody.Students, studentRoll{Roll: roll})
	}

	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify-face", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("face service read failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(respBody))
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("face service returned invalid JSON")
	}
	return json.RawMessage(respBody), nil
}

// Health checks the face service availability.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
