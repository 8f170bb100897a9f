package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	"github.com/olekukonko/tablewriter"
)

// Row is one reported metric.
type Row struct {
	Name  string
	Kind  string
	Count int64
	Rate  float64 // Mean rate per second, meters only
}

// Collect gathers the meters and counters of r registered under prefix,
// sorted by name.
func Collect(r gethmetrics.Registry, prefix string) []Row {
	var rows []Row
	r.Each(func(name string, m interface{}) {
		if !strings.HasPrefix(name, prefix) {
			return
		}
		switch metric := m.(type) {
		case gethmetrics.Meter:
			snap := metric.Snapshot()
			rows = append(rows, Row{Name: name, Kind: "meter", Count: snap.Count(), Rate: snap.RateMean()})
		case gethmetrics.Counter:
			rows = append(rows, Row{Name: name, Kind: "counter", Count: metric.Snapshot().Count()})
		}
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

// WriteTable renders the metrics of r under prefix to w.
func WriteTable(w io.Writer, r gethmetrics.Registry, prefix string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Kind", "Count", "Mean rate"})
	for _, row := range Collect(r, prefix) {
		rate := ""
		if row.Kind == "meter" {
			rate = fmt.Sprintf("%.3f/s", row.Rate)
		}
		table.Append([]string{strings.TrimPrefix(row.Name, prefix), row.Kind, fmt.Sprint(row.Count), rate})
	}
	table.SetFooter([]string{"cpu time", "", fmt.Sprintf("%.2fs", float64(ProcessCPUTime())/100), ""})
	table.Render()
}
