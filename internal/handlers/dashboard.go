package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"outreach-engine-go/internal/manager"
	"outreach-engine-go/internal/model"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardHTML))

type dashboardData struct {
	Status manager.StatusReport
	Queue  []model.OutreachBatch
}

// Dashboard renders a minimal HTML overview of the pipeline.
func (h *Handlers) Dashboard(c *gin.Context) {
	status, err := h.manager.Status()
	if err != nil {
		logrus.Errorf("Failed to build dashboard: %v", err)
		c.String(http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	queue, err := h.store.PendingBatches()
	if err != nil {
		logrus.Errorf("Failed to load queue for dashboard: %v", err)
		c.String(http.StatusInternalServerError, "failed to load queue")
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(c.Writer, dashboardData{Status: status, Queue: queue}); err != nil {
		logrus.Errorf("Failed to render dashboard: %v", err)
	}
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<title>Outreach Dashboard</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.8em; text-align: left; }
.stat { display: inline-block; margin-right: 2em; }
.stat b { font-size: 1.6em; display: block; }
</style>
</head>
<body>
<h1>Outreach Dashboard</h1>
<p>{{.Status.Date}}</p>

<div>
  <div class="stat"><b>{{.Status.Pipeline.QueuedCount}}</b> queued</div>
  <div class="stat"><b>{{.Status.Pipeline.ApprovedCount}}</b> approved</div>
  <div class="stat"><b>{{.Status.Pipeline.AwaitingReply}}</b> awaiting reply</div>
  <div class="stat"><b>{{.Status.Pipeline.RepliedCount}}</b> replied</div>
  <div class="stat"><b>{{printf "%.1f" .Status.Pipeline.ResponseRate}}%</b> response rate</div>
</div>

<h2>Warm-up</h2>
{{if .Status.Warmup.FirstSendDate}}
<p>Day {{.Status.Warmup.AgeDays}} (week {{.Status.Warmup.Week}}),
sent today: {{.Status.Warmup.SentToday}}{{if .Status.Warmup.DailyCap}}/{{.Status.Warmup.DailyCap}}{{end}}</p>
{{else}}
<p>No sends yet.</p>
{{end}}

<p>Follow-ups due: {{.Status.FollowupsDue}}</p>

<h2>Pending batches</h2>
{{if .Queue}}
<table>
<tr><th>ID</th><th>Organization</th><th>Status</th><th>Subject</th><th>Created</th></tr>
{{range .Queue}}
<tr>
<td>{{.ID}}</td>
<td>{{.Organization}}</td>
<td>{{.Status}}</td>
<td>{{.Subject}}</td>
<td>{{.CreatedAt.Format "02 Jan 15:04"}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>Nothing pending.</p>
{{end}}
</body>
</html>
`
