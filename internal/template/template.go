// Package template renders outreach emails: a single-opportunity letter, a
// multi-opportunity digest, and follow-ups.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"outreach-engine-go/internal/batch"
	"outreach-engine-go/internal/config"
	"outreach-engine-go/internal/model"
)

// Email is a rendered subject/body pair. HTMLBody, when present, is additive
// and never replaces the plain-text body.
type Email struct {
	Subject  string
	Body     string
	HTMLBody string
}

// Renderer renders batches into emails using the configured sender identity.
type Renderer struct {
	sender   config.SenderConfig
	single   *template.Template
	multi    *template.Template
	followup *template.Template
}

func NewRenderer(sender config.SenderConfig) (*Renderer, error) {
	funcs := template.FuncMap{
		"lower": strings.ToLower,
		"join":  strings.Join,
	}
	single, err := template.New("single").Funcs(funcs).Parse(singleBody)
	if err != nil {
		return nil, fmt.Errorf("parse single template: %w", err)
	}
	multi, err := template.New("multi").Funcs(funcs).Parse(multiBody)
	if err != nil {
		return nil, fmt.Errorf("parse multi template: %w", err)
	}
	followup, err := template.New("followup").Funcs(funcs).Parse(followupBody)
	if err != nil {
		return nil, fmt.Errorf("parse follow-up template: %w", err)
	}
	return &Renderer{sender: sender, single: single, multi: multi, followup: followup}, nil
}

// Subject builds the outreach subject line for a set of opportunities.
func Subject(opps []model.OpportunitySummary) string {
	switch len(opps) {
	case 0:
		return "Expression of Interest"
	case 1:
		return "Expression of Interest - " + opps[0].OrganizationName
	case 2:
		return fmt.Sprintf("Expression of Interest - %s & %s",
			opps[0].OrganizationName, opps[1].OrganizationName)
	default:
		return fmt.Sprintf("Expression of Interest - %s & %d others",
			opps[0].OrganizationName, len(opps)-1)
	}
}

// Render produces the initial email for a draft, choosing the single or
// multi variant by opportunity count.
func (r *Renderer) Render(d batch.Draft) (Email, error) {
	if len(d.Opportunities) == 0 {
		return Email{}, fmt.Errorf("draft for %s has no opportunities", d.Organization)
	}

	subject := Subject(d.Opportunities)

	var body string
	var err error
	if len(d.Opportunities) == 1 {
		body, err = r.renderSingle(d)
	} else {
		body, err = r.renderMulti(d)
	}
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: subject, Body: body}, nil
}

// RenderFollowup produces follow-up number n (1-based) threading on the
// original subject.
func (r *Renderer) RenderFollowup(originalSubject, organization string, opps []model.OpportunitySummary, n int) (Email, error) {
	if len(opps) == 0 {
		return Email{}, fmt.Errorf("follow-up for %s has no opportunities", organization)
	}

	reference := opps[0].OrganizationName
	if len(opps) > 1 {
		reference = fmt.Sprintf("the %d opportunities I mentioned", len(opps))
	}

	ctx := followupContext{
		Greeting:  teamGreeting(organization),
		Reference: reference,
		Final:     n >= 2,
		Sender:    r.sender,
	}
	var buf bytes.Buffer
	if err := r.followup.Execute(&buf, ctx); err != nil {
		return Email{}, fmt.Errorf("render follow-up: %w", err)
	}
	return Email{Subject: "Re: " + originalSubject, Body: buf.String()}, nil
}

type singleContext struct {
	Greeting string
	Opp      model.OpportunitySummary
	Assets   string
	Sender   config.SenderConfig
}

type multiContext struct {
	Greeting string
	Items    []multiItem
	Sender   config.SenderConfig
}

type multiItem struct {
	Index  int
	Opp    model.OpportunitySummary
	Assets string
}

type followupContext struct {
	Greeting  string
	Reference string
	Final     bool
	Sender    config.SenderConfig
}

func (r *Renderer) renderSingle(d batch.Draft) (string, error) {
	greeting := strings.TrimSpace(d.Primary().Name)
	if greeting == "" {
		greeting = "Sir/Madam"
	}
	ctx := singleContext{
		Greeting: greeting,
		Opp:      d.Opportunities[0],
		Assets:   assetsLine(d.Opportunities[0].EstimatedAssets, "the business and assets"),
		Sender:   r.sender,
	}
	var buf bytes.Buffer
	if err := r.single.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("render single: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) renderMulti(d batch.Draft) (string, error) {
	items := make([]multiItem, len(d.Opportunities))
	for i, o := range d.Opportunities {
		items[i] = multiItem{
			Index:  i + 1,
			Opp:    o,
			Assets: assetsLine(o.EstimatedAssets, "Business & Assets"),
		}
	}
	ctx := multiContext{
		Greeting: teamGreeting(d.Organization),
		Items:    items,
		Sender:   r.sender,
	}
	var buf bytes.Buffer
	if err := r.multi.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("render multi: %w", err)
	}
	return buf.String(), nil
}

func teamGreeting(organization string) string {
	if organization == "" || organization == batch.UnknownOrganization {
		return "Sir/Madam"
	}
	return organization + " Team"
}

// assetsLine joins up to three estimated-asset strings.
func assetsLine(assets []string, fallback string) string {
	if len(assets) > 3 {
		assets = assets[:3]
	}
	if len(assets) == 0 {
		return fallback
	}
	return strings.Join(assets, ", ")
}

const singleBody = `Dear {{.Greeting}},

I noticed the recent {{if .Opp.Category}}{{lower .Opp.Category}}{{else}}insolvency proceedings{{end}} of {{.Opp.OrganizationName}}{{if .Opp.RegistrationID}} (Registration No: {{.Opp.RegistrationID}}){{end}}.

{{if .Opp.Sector}}As a {{lower .Opp.Sector}} sector opportunity, I would be particularly interested in: {{.Assets}}.{{else}}I would be interested in discussing: {{.Assets}}.{{end}}

I'm actively acquiring businesses and can move quickly on due diligence. I have funds available for the right opportunity.

Would this be suitable for a brief discussion?

Best regards,
{{.Sender.Name}}
{{.Sender.Phone}}

---
If you'd prefer not to receive these emails, simply reply with "unsubscribe".`

const multiBody = `Dear {{.Greeting}},

I noticed your recent appointments and wanted to express interest in the following opportunities:
{{range .Items}}
{{.Index}}. {{.Opp.OrganizationName}}
   - Type: {{if .Opp.Category}}{{.Opp.Category}}{{else}}Insolvency{{end}}
   - Sector: {{if .Opp.Sector}}{{.Opp.Sector}}{{else}}Various{{end}}
   - Potential assets: {{.Assets}}
{{end}}
I'm actively acquiring businesses in these sectors and can move quickly on due diligence. I have funds available for suitable opportunities.

Would any of these be suitable for a brief discussion?

Best regards,
{{.Sender.Name}}
{{.Sender.Phone}}

---
If you'd prefer not to receive these emails, simply reply with "unsubscribe".`

const followupBody = `Dear {{.Greeting}},
{{if .Final}}
I wanted to follow up one last time regarding {{.Reference}}.

If there's an opportunity to discuss or if the assets/business are still available, I remain interested and can move quickly.

If this isn't suitable or the opportunity has passed, no need to reply - I'll remove this from my list.
{{else}}
I wanted to follow up on my email from last week regarding {{.Reference}}.

I remain interested in exploring this opportunity and am happy to work around your timeline.

Would a brief call this week be possible?
{{end}}
Best regards,
{{.Sender.Name}}
{{.Sender.Phone}}

---
If you'd prefer not to receive these emails, simply reply with "unsubscribe".`
