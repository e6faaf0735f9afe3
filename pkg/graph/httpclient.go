package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/materio/materio-go/pkg/models"
)

// HTTPClient talks to the curation service's relationship-query API
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a graph client for the given curation service URL
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Health checks if the curation service is accessible
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health check failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// GetRelationshipsByTargetProperty returns relationships targeting targetProperty
func (c *HTTPClient) GetRelationshipsByTargetProperty(ctx context.Context, targetProperty, materialType string) ([]models.PropertyRelationship, error) {
	q := url.Values{}
	q.Set("target_property", targetProperty)
	q.Set("material_type", materialType)

	var out []models.PropertyRelationship
	if err := c.getJSON(ctx, "/api/v1/relationships?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetValueCorrelationsBySourceValue returns correlation rows for one source value
func (c *HTTPClient) GetValueCorrelationsBySourceValue(ctx context.Context, relationshipID, sourceValue string) ([]models.PropertyValueCorrelation, error) {
	q := url.Values{}
	q.Set("source_value", sourceValue)

	var out []models.PropertyValueCorrelation
	path := fmt.Sprintf("/api/v1/relationships/%s/correlations?%s", url.PathEscape(relationshipID), q.Encode())
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetValueCorrelationsByRelationshipID returns all correlation rows for a relationship
func (c *HTTPClient) GetValueCorrelationsByRelationshipID(ctx context.Context, relationshipID string) ([]models.PropertyValueCorrelation, error) {
	var out []models.PropertyValueCorrelation
	path := fmt.Sprintf("/api/v1/relationships/%s/correlations", url.PathEscape(relationshipID))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCompatibilityRulesBySourceValue returns compatibility rows for one source value
func (c *HTTPClient) GetCompatibilityRulesBySourceValue(ctx context.Context, relationshipID, sourceValue string) ([]models.PropertyCompatibilityRule, error) {
	q := url.Values{}
	q.Set("source_value", sourceValue)

	var out []models.PropertyCompatibilityRule
	path := fmt.Sprintf("/api/v1/relationships/%s/rules?%s", url.PathEscape(relationshipID), q.Encode())
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCompatibilityRulesByRelationshipID returns all compatibility rows for a relationship
func (c *HTTPClient) GetCompatibilityRulesByRelationshipID(ctx context.Context, relationshipID string) ([]models.PropertyCompatibilityRule, error) {
	var out []models.PropertyCompatibilityRule
	path := fmt.Sprintf("/api/v1/relationships/%s/rules", url.PathEscape(relationshipID))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPropertyRecommendations queries the graph's recommendation endpoint
func (c *HTTPClient) GetPropertyRecommendations(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/recommendations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create recommendation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: recommendation query failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: recommendation query returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var out models.RecommendationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation response: %w", err)
	}
	return &out, nil
}

// getJSON performs a GET against the curation API and decodes the JSON body
func (c *HTTPClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d for %s", ErrUnavailable, resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", path, err)
	}
	return nil
}
