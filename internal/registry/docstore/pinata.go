package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultPinEndpoint = "https://api.pinata.cloud/pinning/pinFileToIPFS"

// PinataClient pins files to IPFS through the Pinata pinning API.
type PinataClient struct {
	endpoint  string
	apiKey    string
	apiSecret string
	http      *http.Client
}

// NewPinata builds a client; an empty endpoint falls back to the public API.
func NewPinata(endpoint, apiKey, apiSecret string) *PinataClient {
	if endpoint == "" {
		endpoint = defaultPinEndpoint
	}
	return &PinataClient{
		endpoint:  endpoint,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// PinFile uploads content as a multipart file and returns the IPFS hash.
func (c *PinataClient) PinFile(ctx context.Context, name string, content []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build pin request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.apiSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("pin %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pin %s: status %d: %s", name, resp.StatusCode, snippet)
	}

	var parsed pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode pin response: %w", err)
	}
	if parsed.IpfsHash == "" {
		return "", fmt.Errorf("pin %s: empty hash in response", name)
	}
	return parsed.IpfsHash, nil
}

var _ Pinner = (*PinataClient)(nil)
