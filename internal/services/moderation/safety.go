package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const safetyProvider = "media_safety"

// SafetyConfig carries the media safety classifier credentials. Both APIUser
// and APISecret must be set for the client to count as configured; an absent
// credential pair is a configuration condition, not a call failure.
type SafetyConfig struct {
	Endpoint  string
	APIUser   string
	APISecret string
}

// SafetyClient talks to the specialized media safety HTTP API. It screens text
// for profanity, scores image attributes against fixed thresholds and requests
// asynchronous video scans. A non-reject result is never a final approval.
type SafetyClient struct {
	httpClient *http.Client
	endpoint   string
	apiUser    string
	apiSecret  string
}

func NewSafetyClient(httpClient *http.Client, cfg SafetyConfig) *SafetyClient {
	return &SafetyClient{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiUser:    strings.TrimSpace(cfg.APIUser),
		apiSecret:  strings.TrimSpace(cfg.APISecret),
	}
}

func (c *SafetyClient) Configured() bool {
	return c != nil && c.apiUser != "" && c.apiSecret != ""
}

// imageThresholds are deliberately strict and asymmetric, erring toward
// rejection. The first attribute over its limit decides.
var imageThresholds = []struct {
	family    string
	attribute string
	limit     float64
	category  string
	score     float64
}{
	{"nudity", "sexual_activity", 0.10, "nudity", 1.0},
	{"nudity", "sexual_display", 0.10, "nudity", 1.0},
	{"nudity", "raw", 0.15, "nudity", 1.0},
	{"nudity", "partial", 0.40, "nudity", 0.9},
	{"weapons", "prob", 0.30, "weapons", 0.9},
	{"drugs", "prob", 0.30, "drugs", 0.9},
	{"gore", "prob", 0.25, "gore", 1.0},
	{"scam", "prob", 0.50, "scam", 0.9},
}

var imageAttributeFamilies = []string{"nudity", "weapons", "drugs", "gore", "scam"}

type safetyCheckRequest struct {
	Text                string   `json:"text,omitempty"`
	ImageURL            string   `json:"image_url,omitempty"`
	RequestedAttributes []string `json:"requested_attributes"`
}

type safetyCheckResponse struct {
	Status    string `json:"status"`
	Profanity *struct {
		Matches []struct {
			Type string `json:"type"`
		} `json:"matches"`
	} `json:"profanity,omitempty"`
	Attributes map[string]map[string]float64 `json:"attributes,omitempty"`
}

type videoScanRequest struct {
	VideoURL string `json:"video_url"`
}

type videoScanResponse struct {
	ScanID string `json:"scan_id"`
}

// Check runs the text, image and video sub-checks in order. It returns a
// non-nil verdict only for a decisive reject; nil means inconclusive and the
// pipeline moves on. Returned notes are diagnostic details the orchestrator
// carries forward regardless of outcome.
func (c *SafetyClient) Check(ctx context.Context, text, imageURL, videoURL string) (*Verdict, []string, error) {
	var notes []string

	if strings.TrimSpace(text) != "" {
		verdict, err := c.checkText(ctx, text)
		if err != nil {
			return nil, notes, err
		}
		if verdict != nil {
			return verdict, notes, nil
		}
	}

	if imageURL != "" {
		verdict, err := c.checkImage(ctx, imageURL)
		if err != nil {
			return nil, notes, err
		}
		if verdict != nil {
			return verdict, notes, nil
		}
	}

	if videoURL != "" {
		scanID, err := c.requestVideoScan(ctx, videoURL)
		if err != nil {
			return nil, notes, err
		}
		// A scan request is not a verdict; the scan completes out of band.
		notes = append(notes, "video scan requested: "+scanID)
	}

	return nil, notes, nil
}

func (c *SafetyClient) checkText(ctx context.Context, text string) (*Verdict, error) {
	var resp safetyCheckResponse
	err := c.postJSON(ctx, c.endpoint+"/text/check", safetyCheckRequest{
		Text:                text,
		RequestedAttributes: []string{"profanity"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Profanity != nil && len(resp.Profanity.Matches) > 0 {
		types := make([]string, 0, len(resp.Profanity.Matches))
		for _, m := range resp.Profanity.Matches {
			types = append(types, m.Type)
		}
		v := Rejected("profanity", 0.9, "detected terms: "+strings.Join(types, ", "))
		return &v, nil
	}

	return nil, nil
}

func (c *SafetyClient) checkImage(ctx context.Context, imageURL string) (*Verdict, error) {
	var resp safetyCheckResponse
	err := c.postJSON(ctx, c.endpoint+"/image/check", safetyCheckRequest{
		ImageURL:            imageURL,
		RequestedAttributes: imageAttributeFamilies,
	}, &resp)
	if err != nil {
		return nil, err
	}

	for _, t := range imageThresholds {
		family, ok := resp.Attributes[t.family]
		if !ok {
			continue
		}
		prob, ok := family[t.attribute]
		if !ok {
			continue
		}
		if prob > t.limit {
			v := Rejected(t.category, t.score,
				fmt.Sprintf("image attribute %s.%s=%.2f over limit %.2f", t.family, t.attribute, prob, t.limit))
			return &v, nil
		}
	}

	return nil, nil
}

func (c *SafetyClient) requestVideoScan(ctx context.Context, videoURL string) (string, error) {
	var resp videoScanResponse
	if err := c.postJSON(ctx, c.endpoint+"/video/scan", videoScanRequest{VideoURL: videoURL}, &resp); err != nil {
		return "", err
	}
	return resp.ScanID, nil
}

func (c *SafetyClient) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return newProviderError(safetyProvider, CodeParseError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return newProviderError(safetyProvider, CodeHTTPError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiUser, c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(safetyProvider, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return newProviderError(safetyProvider, CodeHTTPError, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newProviderError(safetyProvider, CodeParseError, err)
	}

	return nil
}
