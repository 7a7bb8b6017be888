// Package report renders a BatchSummary as a standalone HTML page with
// Chart.js visuals, kept in the teacher's dark-gradient dashboard style
// but re-keyed from HTTP status codes/RPS to rollout outcome counts.
package report

import (
	"fmt"
	"html/template"
	"os"
	"sort"
	"time"

	"github.com/acr9/corral/pkg/models"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>corral batch report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 50%, #0f3460 100%);
            min-height: 100vh;
            color: #e0e0e0;
            padding: 20px;
        }
        .container { max-width: 1200px; margin: 0 auto; }
        .header {
            text-align: center;
            margin-bottom: 40px;
            padding: 30px;
            background: rgba(255,255,255,0.05);
            border-radius: 20px;
            backdrop-filter: blur(10px);
        }
        .header h1 {
            font-size: 2.6rem;
            background: linear-gradient(90deg, #00d9ff, #ff00ff);
            -webkit-background-clip: text;
            -webkit-text-fill-color: transparent;
            background-clip: text;
            margin-bottom: 10px;
        }
        .header p { color: #888; font-size: 1.1rem; }
        .summary-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(180px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .summary-card {
            background: rgba(255,255,255,0.08);
            border-radius: 15px;
            padding: 25px;
            text-align: center;
            border: 1px solid rgba(255,255,255,0.1);
        }
        .summary-card .value {
            font-size: 2.2rem;
            font-weight: bold;
            background: linear-gradient(90deg, #00d9ff, #00ff88);
            -webkit-background-clip: text;
            -webkit-text-fill-color: transparent;
            background-clip: text;
        }
        .summary-card .label {
            color: #888;
            margin-top: 10px;
            font-size: 0.85rem;
            text-transform: uppercase;
            letter-spacing: 1px;
        }
        .charts-grid {
            display: grid;
            grid-template-columns: repeat(2, 1fr);
            gap: 30px;
            margin-bottom: 40px;
        }
        @media (max-width: 900px) { .charts-grid { grid-template-columns: 1fr; } }
        .chart-container {
            background: rgba(255,255,255,0.05);
            border-radius: 20px;
            padding: 25px;
            border: 1px solid rgba(255,255,255,0.1);
        }
        .chart-container h3 { margin-bottom: 20px; color: #00d9ff; font-size: 1.2rem; }
        .chart-wrapper { position: relative; height: 280px; }
        .error-table {
            background: rgba(255,255,255,0.05);
            border-radius: 20px;
            padding: 25px;
            border: 1px solid rgba(255, 71, 87, 0.3);
        }
        table { width: 100%; border-collapse: collapse; }
        th, td { padding: 12px; text-align: left; border-bottom: 1px solid rgba(255,255,255,0.1); }
        th { color: #ff4757; font-weight: 600; text-transform: uppercase; font-size: 0.8rem; letter-spacing: 1px; }
        td { font-family: monospace; color: #ff6b81; }
        .footer { text-align: center; padding: 30px; color: #666; font-size: 0.9rem; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>corral batch report</h1>
            <p>Generated at {{.GeneratedAt}}</p>
        </div>

        <div class="summary-grid">
            <div class="summary-card"><div class="value">{{.Total}}</div><div class="label">Total Jobs</div></div>
            <div class="summary-card"><div class="value">{{printf "%.1f" .SuccessRate}}%</div><div class="label">Success Rate</div></div>
            <div class="summary-card"><div class="value">{{.Success}}</div><div class="label">Succeeded</div></div>
            <div class="summary-card"><div class="value">{{.Failures}}</div><div class="label">Failed</div></div>
            <div class="summary-card"><div class="value">{{.Timeouts}}</div><div class="label">Timed Out</div></div>
            <div class="summary-card"><div class="value">{{.Min}}</div><div class="label">Min Elapsed</div></div>
            <div class="summary-card"><div class="value">{{.P50}}</div><div class="label">P50 Elapsed</div></div>
            <div class="summary-card"><div class="value">{{.P99}}</div><div class="label">P99 Elapsed</div></div>
        </div>

        <div class="charts-grid">
            <div class="chart-container">
                <h3>Outcome breakdown</h3>
                <div class="chart-wrapper"><canvas id="outcomeChart"></canvas></div>
            </div>
            <div class="chart-container">
                <h3>Elapsed percentiles (ms)</h3>
                <div class="chart-wrapper"><canvas id="latencyChart"></canvas></div>
            </div>
        </div>

        {{if .Errors}}
        <div class="error-table">
            <h3 style="color: #ff4757; margin-bottom: 20px;">Error kinds</h3>
            <table>
                <thead><tr><th>Message</th><th>Count</th></tr></thead>
                <tbody>
                    {{range .Errors}}
                    <tr><td>{{.Message}}</td><td>{{.Count}}</td></tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        <div class="footer"><p>corral batch run</p></div>
    </div>

    <script>
        Chart.defaults.color = '#888';
        Chart.defaults.borderColor = 'rgba(255,255,255,0.1)';

        new Chart(document.getElementById('outcomeChart'), {
            type: 'doughnut',
            data: {
                labels: ['Success', 'Failures', 'Timeouts', 'Cancelled'],
                datasets: [{
                    data: [{{.Success}}, {{.OtherFailures}}, {{.Timeouts}}, {{.Cancelled}}],
                    backgroundColor: ['#00ff88', '#ff4757', '#ffbb00', '#6c5ce7']
                }]
            },
            options: { responsive: true, maintainAspectRatio: false, plugins: { legend: { position: 'right' } } }
        });

        new Chart(document.getElementById('latencyChart'), {
            type: 'bar',
            data: {
                labels: ['P50', 'P75', 'P90', 'P95', 'P99'],
                datasets: [{
                    label: 'Elapsed (ms)',
                    data: [{{.P50Ms}}, {{.P75Ms}}, {{.P90Ms}}, {{.P95Ms}}, {{.P99Ms}}],
                    backgroundColor: '#00d9ff'
                }]
            },
            options: {
                responsive: true, maintainAspectRatio: false,
                plugins: { legend: { display: false } },
                scales: { y: { beginAtZero: true } }
            }
        });
    </script>
</body>
</html>`

// ErrorRow is one row of the error-kinds table, sorted by count desc.
type ErrorRow struct {
	Message string
	Count   int
}

type templateData struct {
	GeneratedAt                        string
	Total                              int
	Success                            int
	Failures                           int
	OtherFailures                      int
	Timeouts                           int
	Cancelled                          int
	SuccessRate                        float64
	P50, P75, P90, P95, P99, Max, Min  string
	P50Ms, P75Ms, P90Ms, P95Ms, P99Ms  float64
	Errors                             []ErrorRow
}

// GenerateHTML writes summary as a standalone HTML report to filename.
func GenerateHTML(summary models.BatchSummary, filename string) error {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("report: parse template: %w", err)
	}

	var errorRows []ErrorRow
	for msg, count := range summary.ErrorKinds {
		errorRows = append(errorRows, ErrorRow{Message: msg, Count: count})
	}
	sort.Slice(errorRows, func(i, j int) bool { return errorRows[i].Count > errorRows[j].Count })

	data := templateData{
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Total:         summary.Total,
		Success:       summary.Success,
		Failures:      summary.Failures,
		OtherFailures: summary.Failures - summary.Timeouts - summary.Cancelled,
		Timeouts:      summary.Timeouts,
		Cancelled:     summary.Cancelled,
		SuccessRate:   summary.SuccessRate,
		P50:           formatDuration(summary.P50),
		P75:           formatDuration(summary.P75),
		P90:           formatDuration(summary.P90),
		P95:           formatDuration(summary.P95),
		P99:           formatDuration(summary.P99),
		Max:           formatDuration(summary.Max),
		Min:           formatDuration(summary.Min),
		P50Ms:         msFloat(summary.P50),
		P75Ms:         msFloat(summary.P75),
		P90Ms:         msFloat(summary.P90),
		P95Ms:         msFloat(summary.P95),
		P99Ms:         msFloat(summary.P99),
		Errors:        errorRows,
	}
	if data.OtherFailures < 0 {
		data.OtherFailures = 0
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("report: create file: %w", err)
	}
	defer file.Close()

	return tmpl.Execute(file, data)
}

func msFloat(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.0fµs", float64(d.Microseconds()))
	}
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
