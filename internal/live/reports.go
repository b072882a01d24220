package live

import "analyticshub/internal/models"

// report is the dimension and metric selection for one family.
type report struct {
	dimensions []string
	metrics    []string
}

var reports = map[models.Family]report{
	models.FamilyDaily: {
		dimensions: []string{"date"},
		metrics:    []string{"screenPageViews", "sessions", "totalUsers", "bounceRate"},
	},
	models.FamilyPages: {
		dimensions: []string{"pagePath", "pageTitle"},
		metrics:    []string{"screenPageViews", "sessions", "bounceRate"},
	},
	models.FamilyTraffic: {
		dimensions: []string{"sessionSource", "sessionMedium"},
		metrics:    []string{"sessions", "totalUsers", "newUsers"},
	},
	models.FamilyDevices: {
		dimensions: []string{"deviceCategory"},
		metrics:    []string{"sessions", "totalUsers"},
	},
	models.FamilyGeo: {
		dimensions: []string{"country", "city"},
		metrics:    []string{"sessions", "totalUsers", "newUsers"},
	},
	models.FamilySummary: {
		metrics: []string{"screenPageViews", "sessions", "totalUsers", "bounceRate", "averageSessionDuration"},
	},
}

type nameRef struct {
	Name string `json:"name"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type runReportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Dimensions []nameRef   `json:"dimensions,omitempty"`
	Metrics    []nameRef   `json:"metrics"`
	Limit      int64       `json:"limit,omitempty"`
}

type cell struct {
	Value string `json:"value"`
}

type runReportResponse struct {
	DimensionHeaders []nameRef `json:"dimensionHeaders"`
	MetricHeaders    []nameRef `json:"metricHeaders"`
	Rows             []struct {
		DimensionValues []cell `json:"dimensionValues"`
		MetricValues    []cell `json:"metricValues"`
	} `json:"rows"`
	RowCount int64 `json:"rowCount"`
}

func newRequest(r report, startDate, endDate string, limit int64) runReportRequest {
	req := runReportRequest{
		DateRanges: []dateRange{{StartDate: startDate, EndDate: endDate}},
		Limit:      limit,
	}
	for _, d := range r.dimensions {
		req.Dimensions = append(req.Dimensions, nameRef{Name: d})
	}
	for _, m := range r.metrics {
		req.Metrics = append(req.Metrics, nameRef{Name: m})
	}
	return req
}

// flatten turns report rows into raw rows keyed by header name. Values stay
// strings; the validator parses them.
func (resp runReportResponse) flatten() []models.Row {
	rows := make([]models.Row, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		row := make(models.Row, len(resp.DimensionHeaders)+len(resp.MetricHeaders))
		for i, h := range resp.DimensionHeaders {
			if i < len(r.DimensionValues) {
				row[h.Name] = r.DimensionValues[i].Value
			}
		}
		for i, h := range resp.MetricHeaders {
			if i < len(r.MetricValues) {
				row[h.Name] = r.MetricValues[i].Value
			}
		}
		rows = append(rows, row)
	}
	return rows
}
