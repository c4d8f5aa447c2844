package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/marketloop/mobile-backend/errors"
	"github.com/marketloop/mobile-backend/logger"
	"go.uber.org/zap"
)

// SegmentDirectory resolves marketing segment names to member user IDs.
// Targeting treats lookup failures as empty memberships rather than failing
// the whole dispatch.
type SegmentDirectory interface {
	UsersInSegments(ctx context.Context, segments []string) ([]string, error)
}

// httpSegmentDirectory implements SegmentDirectory against the storefront's
// segment service.
type httpSegmentDirectory struct {
	directoryURL string
	httpClient   *http.Client
	logger       *zap.SugaredLogger
}

// NewHTTPSegmentDirectory creates a segment directory client.
func NewHTTPSegmentDirectory(directoryURL string, timeout time.Duration) SegmentDirectory {
	return &httpSegmentDirectory{
		directoryURL: directoryURL,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger.GetLogger().Named("segment-directory"),
	}
}

type segmentLookupRequest struct {
	Segments []string `json:"segments"`
}

type segmentLookupResponse struct {
	UserIDs []string `json:"userIds"`
}

func (d *httpSegmentDirectory) UsersInSegments(ctx context.Context, segments []string) ([]string, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(segmentLookupRequest{Segments: segments})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal segment lookup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.directoryURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create segment lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.TransportFailed(err, "segment directory request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read segment directory response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		d.logger.Errorw("Segment directory returned non-OK status",
			"statusCode", resp.StatusCode,
			"segments", segments)
		return nil, apperrors.TransportFailed(nil,
			fmt.Sprintf("segment directory returned status %d", resp.StatusCode))
	}

	var lookupResp segmentLookupResponse
	if err := json.Unmarshal(respBody, &lookupResp); err != nil {
		return nil, fmt.Errorf("failed to parse segment directory response: %w", err)
	}
	return lookupResp.UserIDs, nil
}
