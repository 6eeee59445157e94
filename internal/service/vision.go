package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/healco/foodresolver/config"
	"github.com/healco/foodresolver/internal/models"
	"github.com/healco/foodresolver/internal/scrape"
)

const maxImageBytes = 10 << 20

// VisionClient sends candidate images through an OCR text-detection endpoint
// and runs the generic heuristic parser over the recovered text. Without a
// key the step is skipped entirely; any failure yields no record and never
// aborts the surrounding batch.
type VisionClient struct {
	key         string
	annotateURL string
	fetchClient *http.Client
	ocrClient   *http.Client
	logger      *zap.Logger
}

func NewVisionClient(cfg *config.Config, logger *zap.Logger) *VisionClient {
	return &VisionClient{
		key:         cfg.VisionKey,
		annotateURL: "https://vision.googleapis.com/v1/images:annotate",
		fetchClient: &http.Client{Timeout: 10 * time.Second},
		ocrClient:   &http.Client{Timeout: 20 * time.Second},
		logger:      logger,
	}
}

// Available reports whether an OCR key is configured.
func (c *VisionClient) Available() bool {
	return c.key != ""
}

// ExtractRecord fetches the image, OCRs it and parses nutrition facts from
// the recovered text. Returns (nil, nil) on any soft failure.
func (c *VisionClient) ExtractRecord(ctx context.Context, imageURL, refererURL, title string, grams, milliliters *float64) (*models.NutritionRecord, error) {
	if !c.Available() {
		return nil, nil
	}

	content, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		c.logger.Warn("failed to fetch image for OCR", zap.String("url", imageURL), zap.Error(err))
		return nil, nil
	}

	text, err := c.annotate(ctx, content)
	if err != nil {
		c.logger.Warn("OCR annotation failed", zap.String("url", imageURL), zap.Error(err))
		return nil, nil
	}
	if text == "" {
		return nil, nil
	}

	rec := scrape.ParseText(refererURL, title, text, "vision-ocr")
	if rec == nil || rec.Kcal100g == nil {
		return nil, nil
	}
	rec.ApplyPortion(grams, milliliters)
	return rec, nil
}

func (c *VisionClient) fetchImage(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := c.fetchClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (c *VisionClient) annotate(ctx context.Context, base64Content string) (string, error) {
	reqBody := map[string]interface{}{
		"requests": []map[string]interface{}{
			{
				"image":    map[string]string{"content": base64Content},
				"features": []map[string]string{{"type": "TEXT_DETECTION"}},
			},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.annotateURL+"?key="+c.key, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.ocrClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Responses []struct {
			FullTextAnnotation struct {
				Text string `json:"text"`
			} `json:"fullTextAnnotation"`
		} `json:"responses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode OCR response: %w", err)
	}
	if len(body.Responses) == 0 {
		return "", nil
	}
	return body.Responses[0].FullTextAnnotation.Text, nil
}
