package mapbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg" // decoder for jpeg-styled tiles
	_ "image/png"  // decoder for the default static image format
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/quake-energy/internal/domain"
	"github.com/couchcryptid/quake-energy/internal/observability"
)

// maxStaticSize is the largest width or height the Static Images API serves.
const maxStaticSize = 1280

// Client talks to the Mapbox Static Images and Geocoding APIs. It implements
// domain.Geocoder and pipeline.BaseMapper.
type Client struct {
	token      string
	style      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox client rendering base maps in the given style,
// e.g. "mapbox/light-v11".
func NewClient(token, style string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		style: style,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com",
		metrics: metrics,
		logger:  logger,
	}
}

// BaseMap fetches one static map image covering exactly bbox. The image is
// the largest size within width x height, after clamping to the API limit,
// that has the bbox's Web Mercator aspect ratio, so Mapbox adds no padding and
// the tile can be stretched over the bbox.
func (c *Client) BaseMap(ctx context.Context, bbox domain.BoundingBox, width, height int) (image.Image, error) {
	width, height = fitSize(bbox, clampSize(width), clampSize(height))
	// Mapbox uses lon,lat order.
	area := fmt.Sprintf("[%g,%g,%g,%g]", bbox.MinLon(), bbox.MinLat(), bbox.MaxLon(), bbox.MaxLat())
	u := fmt.Sprintf("%s/styles/v1/%s/static/%s/%dx%d", c.baseURL, c.style, area, width, height)
	params := url.Values{
		"access_token": {c.token},
		"attribution":  {"false"},
		"logo":         {"false"},
		"padding":      {"0"},
	}

	body, err := c.get(ctx, u+"?"+params.Encode(), "static")
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		c.metrics.MapboxRequests.WithLabelValues("static", "error").Inc()
		return nil, fmt.Errorf("decode static map: %w", err)
	}
	c.metrics.MapboxRequests.WithLabelValues("static", "success").Inc()
	return img, nil
}

// ReverseGeocode converts coordinates to place details.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}

	body, err := c.get(ctx, u+"?"+params.Encode(), "reverse")
	if err != nil {
		return domain.GeocodingResult{}, err
	}

	var mapboxResp response
	if err := json.Unmarshal(body, &mapboxResp); err != nil {
		c.metrics.MapboxRequests.WithLabelValues("reverse", "error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		c.metrics.MapboxRequests.WithLabelValues("reverse", "empty").Inc()
		return domain.GeocodingResult{}, nil
	}

	c.metrics.MapboxRequests.WithLabelValues("reverse", "success").Inc()
	f := mapboxResp.Features[0]
	return domain.GeocodingResult{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}, nil
}

func (c *Client) get(ctx context.Context, fullURL, method string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.MapboxAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.MapboxRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s mapbox request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.MapboxRequests.WithLabelValues(method, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.MapboxRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}
	return body, nil
}

// mercatorAspect is the width/height ratio of bbox in Web Mercator.
func mercatorAspect(bbox domain.BoundingBox) float64 {
	y := func(lat float64) float64 {
		return math.Log(math.Tan(math.Pi/4 + lat*math.Pi/360))
	}
	dx := (bbox.MaxLon() - bbox.MinLon()) * math.Pi / 180
	return dx / (y(bbox.MaxLat()) - y(bbox.MinLat()))
}

// fitSize shrinks one side of maxW x maxH so the result matches the bbox aspect.
func fitSize(bbox domain.BoundingBox, maxW, maxH int) (w, h int) {
	aspect := mercatorAspect(bbox)
	if float64(maxW)/float64(maxH) > aspect {
		w, h = int(math.Round(float64(maxH)*aspect)), maxH
	} else {
		w, h = maxW, int(math.Round(float64(maxW)/aspect))
	}
	return max(w, 1), max(h, 1)
}

func clampSize(n int) int {
	switch {
	case n < 1:
		return 1
	case n > maxStaticSize:
		return maxStaticSize
	default:
		return n
	}
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
