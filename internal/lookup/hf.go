package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHFEndpoint = "https://services.swpc.noaa.gov/products/noaa-scales.json"

// HFConfig customizes the NOAA space weather client.
type HFConfig struct {
	Endpoint   string
	HTTPClient *http.Client
}

// HFClient reports NOAA space weather scales, which drive HF propagation.
type HFClient struct {
	endpoint string
	client   *http.Client
}

// noaaScale is one of the R/S/G scales in the SWPC product. All values come
// over the wire as strings.
type noaaScale struct {
	Scale string `json:"Scale"`
	Text  string `json:"Text"`
}

type noaaDay struct {
	DateStamp string    `json:"DateStamp"`
	R         noaaScale `json:"R"`
	S         noaaScale `json:"S"`
	G         noaaScale `json:"G"`
}

func NewHFClient(cfg HFConfig) *HFClient {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultHFEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultLookupTimeout}
	}

	return &HFClient{endpoint: endpoint, client: client}
}

func (c *HFClient) Report(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build space weather request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch space weather: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("space weather service returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read space weather response: %w", err)
	}
	// Keys are day offsets: "-1" yesterday, "0" today, "1"/"2"/"3" forecast.
	var days map[string]noaaDay
	if err := json.Unmarshal(body, &days); err != nil {
		return nil, fmt.Errorf("parse space weather response: %w", err)
	}
	today, ok := days["0"]
	if !ok {
		return nil, fmt.Errorf("space weather response has no current-day entry")
	}

	lines := []string{
		"HF conditions (NOAA space weather scales, " + dayLabel(today) + "):",
		formatScale("Radio blackout R", today.R),
		formatScale("Solar radiation S", today.S),
		formatScale("Geomagnetic storm G", today.G),
	}
	if tomorrow, ok := days["1"]; ok {
		lines = append(lines, "Tomorrow: "+formatScale("R", tomorrow.R)+
			", "+formatScale("S", tomorrow.S)+", "+formatScale("G", tomorrow.G))
	}

	return lines, nil
}

func dayLabel(day noaaDay) string {
	if day.DateStamp != "" {
		return day.DateStamp
	}

	return time.Now().UTC().Format("2006-01-02")
}

func formatScale(label string, scale noaaScale) string {
	level := scale.Scale
	if level == "" {
		level = "?"
	}
	text := scale.Text
	if text == "" {
		text = "no data"
	}

	return fmt.Sprintf("%s%s: %s", label, level, text)
}
