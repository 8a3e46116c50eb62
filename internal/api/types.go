package api

// AlertTrend is the chart-shaped alert history returned by the trend endpoint.
type AlertTrend struct {
	Labels   []string       `json:"labels"`
	Datasets []TrendDataset `json:"datasets"`
}

// TrendDataset is one severity series within an AlertTrend.
type TrendDataset struct {
	Label string `json:"label"`
	Data  []int  `json:"data"`
}
