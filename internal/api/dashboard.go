package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/minewatch/minewatch-data/internal/model"
)

// GetDashboardStats fetches the aggregate dashboard snapshot.
func (c *Client) GetDashboardStats(ctx context.Context) (model.DashboardStats, error) {
	var stats model.DashboardStats
	if err := c.get(ctx, "/api/v1/dashboard/stats", nil, &stats); err != nil {
		return model.DashboardStats{}, err
	}
	return stats, nil
}

// GetSitesHealth fetches per-site health summaries, highest risk first.
// limit caps the number of sites returned; 0 uses the server default.
func (c *Client) GetSitesHealth(ctx context.Context, limit int) ([]model.SiteHealth, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var sites []model.SiteHealth
	if err := c.get(ctx, "/api/v1/dashboard/sites/health", query, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// GetAlertTrend fetches chart-ready alert counts for a period
// (one of "1h", "6h", "24h", "7d", "30d").
func (c *Client) GetAlertTrend(ctx context.Context, period string) (AlertTrend, error) {
	query := url.Values{}
	if period != "" {
		query.Set("period", period)
	}

	var trend AlertTrend
	if err := c.get(ctx, "/api/v1/dashboard/alerts/trend", query, &trend); err != nil {
		return AlertTrend{}, err
	}
	return trend, nil
}
