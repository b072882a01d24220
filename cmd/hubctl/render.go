package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"analyticshub/internal/analytics"
	"analyticshub/internal/timeframe"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown format %q: expected table, json or yaml", format)
	}
}

// strategyView is the printable form of a routing decision.
type strategyView struct {
	Label           analytics.SourceTag `json:"label"`
	UseHistorical   bool                `json:"useHistorical"`
	UseLive         bool                `json:"useLive"`
	CutoverDate     string              `json:"cutoverDate"`
	HistoricalRange string              `json:"historicalRange,omitempty"`
	LiveRange       string              `json:"liveRange,omitempty"`
}

func newStrategyView(d analytics.Decision, cutover time.Time) strategyView {
	v := strategyView{
		Label:         d.Label,
		UseHistorical: d.UseHistorical,
		UseLive:       d.UseLive,
		CutoverDate:   timeframe.FormatDate(cutover),
	}
	if d.HistoricalRange != nil {
		v.HistoricalRange = d.HistoricalRange.String()
	}
	if d.LiveRange != nil {
		v.LiveRange = d.LiveRange.String()
	}
	return v
}

// render writes v to out in the given format. Table output puts the source
// tag, quality report and any error on status so out stays parseable.
func render(out, status io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		return renderYAML(out, v)
	default:
		return renderTable(out, status, v)
	}
}

// renderYAML goes through JSON so field names and order match the API.
func renderYAML(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return err
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle drops the flow and quoting styles JSON input parses with.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func renderTable(out, status io.Writer, v any) error {
	switch r := v.(type) {
	case analytics.Result[analytics.DailyMetric]:
		printTable(out, []string{"DATE", "PAGEVIEWS", "SESSIONS", "USERS", "BOUNCE RATE"}, func(add func(...string)) {
			for _, m := range r.Data {
				add(m.Date, itoa(m.PageViews), itoa(m.Sessions), itoa(m.Users), percent(m.BounceRate))
			}
		})
		printStatus(status, r.SourceTag, &r.QualityReport, r.Error)

	case analytics.Result[analytics.PageView]:
		printTable(out, []string{"PATH", "TITLE", "PAGEVIEWS", "SESSIONS", "BOUNCE RATE"}, func(add func(...string)) {
			for _, p := range r.Data {
				add(p.Path, p.Title, itoa(p.PageViews), itoa(p.Sessions), percent(p.BounceRate))
			}
		})
		printStatus(status, r.SourceTag, &r.QualityReport, r.Error)

	case analytics.Result[analytics.TrafficSource]:
		printTable(out, []string{"SOURCE", "MEDIUM", "SESSIONS", "USERS", "NEW USERS"}, func(add func(...string)) {
			for _, s := range r.Data {
				add(s.Source, s.Medium, itoa(s.Sessions), itoa(s.Users), itoa(s.NewUsers))
			}
		})
		printStatus(status, r.SourceTag, &r.QualityReport, r.Error)

	case analytics.Result[analytics.Device]:
		printTable(out, []string{"DEVICE", "SESSIONS", "USERS"}, func(add func(...string)) {
			for _, d := range r.Data {
				add(d.DeviceCategory, itoa(d.Sessions), itoa(d.Users))
			}
		})
		printStatus(status, r.SourceTag, &r.QualityReport, r.Error)

	case analytics.Result[analytics.Geographic]:
		printTable(out, []string{"COUNTRY", "CITY", "SESSIONS", "USERS", "NEW USERS"}, func(add func(...string)) {
			for _, g := range r.Data {
				add(g.Country, g.City, itoa(g.Sessions), itoa(g.Users), itoa(g.NewUsers))
			}
		})
		printStatus(status, r.SourceTag, &r.QualityReport, r.Error)

	case analytics.SummaryResult:
		s := r.Data
		printTable(out, []string{"METRIC", "VALUE"}, func(add func(...string)) {
			add("Pageviews", itoa(s.TotalPageViews))
			add("Sessions", itoa(s.TotalSessions))
			add("Users", itoa(s.TotalUsers))
			add("Bounce rate", percent(&s.BounceRate))
			add("Avg. session duration", seconds(s.AverageSessionDuration))
		})
		printStatus(status, r.SourceTag, nil, r.Error)

	case analytics.SummaryComparison:
		cur, prev, ch := r.Current.Data, r.Previous.Data, r.Changes
		printTable(out, []string{"METRIC", "CURRENT", "PREVIOUS", "CHANGE"}, func(add func(...string)) {
			add("Pageviews", itoa(cur.TotalPageViews), itoa(prev.TotalPageViews), change(ch.PageViewsChange))
			add("Sessions", itoa(cur.TotalSessions), itoa(prev.TotalSessions), change(ch.SessionsChange))
			add("Users", itoa(cur.TotalUsers), itoa(prev.TotalUsers), change(ch.UsersChange))
			add("Bounce rate", percent(&cur.BounceRate), percent(&prev.BounceRate), change(ch.BounceRateChange))
			add("Avg. session duration", seconds(cur.AverageSessionDuration), seconds(prev.AverageSessionDuration), change(ch.AvgTimeChange))
		})
		printStatus(status, r.Current.SourceTag, nil, r.Current.Error)
		if r.Previous.Error != "" {
			fmt.Fprintf(status, "previous period error: %s\n", r.Previous.Error)
		}

	case strategyView:
		printTable(out, []string{"FIELD", "VALUE"}, func(add func(...string)) {
			add("Label", string(r.Label))
			add("Cutover", r.CutoverDate)
			add("Historical", orDash(r.HistoricalRange))
			add("Live", orDash(r.LiveRange))
		})

	default:
		return fmt.Errorf("no table layout for %T", v)
	}
	return nil
}

// printTable renders headers and rows with tablewriter.
func printTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

func printStatus(w io.Writer, tag analytics.SourceTag, q *analytics.QualityReport, errMsg string) {
	if q != nil {
		fmt.Fprintf(w, "source: %s  records: %d/%d valid\n", tag, q.ValidRecordCount, q.TotalRecordCount)
		for _, issue := range q.Issues {
			fmt.Fprintf(w, "  %s\n", issue)
		}
	} else {
		fmt.Fprintf(w, "source: %s\n", tag)
	}
	if errMsg != "" {
		fmt.Fprintf(w, "error: %s\n", errMsg)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func percent(rate *float64) string {
	if rate == nil {
		return "-"
	}
	return strconv.FormatFloat(*rate*100, 'f', 1, 64) + "%"
}

func seconds(s float64) string {
	return (time.Duration(s * float64(time.Second))).Round(time.Second).String()
}

func change(c *float64) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", *c)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
