package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"unicode"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type EmailMessage struct {
	To              string
	Itinerary       GeneratedItinerary
	PersonalMessage string
}

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

func NewSendGridClient(apiKey string) *sendgrid.Client {
	return sendgrid.NewSendClient(apiKey)
}

type EmailConfig struct {
	FromEmail string
	FromName  string
	AttachPDF bool
}

// EmailSender renders an itinerary and hands it to SendGrid. Only a 202 from
// the provider counts as delivered; nothing is retried.
type EmailSender struct {
	client    mailClient
	from      *mail.Email
	attachPDF bool
	renderPDF func(GeneratedItinerary) ([]byte, error)
	logger    *slog.Logger
}

func NewEmailSender(client mailClient, cfg EmailConfig, logger *slog.Logger) *EmailSender {
	return &EmailSender{
		client:    client,
		from:      mail.NewEmail(cfg.FromName, cfg.FromEmail),
		attachPDF: cfg.AttachPDF,
		renderPDF: RenderItineraryPDF,
		logger:    logger,
	}
}

// Send returns the provider status code alongside any error.
func (s *EmailSender) Send(ctx context.Context, msg EmailMessage) (int, error) {
	html, err := RenderItineraryEmail(msg.Itinerary, msg.PersonalMessage)
	if err != nil {
		return 0, s.failed(ctx, fmt.Errorf("render email: %w", err))
	}

	m := mail.NewSingleEmail(s.from, EmailSubject(msg.Itinerary), mail.NewEmail("", msg.To),
		RenderItineraryText(msg.Itinerary, msg.PersonalMessage), html)

	if s.attachPDF {
		if pdf, err := s.renderPDF(msg.Itinerary); err != nil {
			s.logger.WarnContext(ctx, "pdf attachment skipped", "error", err)
		} else {
			a := mail.NewAttachment().
				SetContent(base64.StdEncoding.EncodeToString(pdf)).
				SetType("application/pdf").
				SetFilename("itinerary.pdf").
				SetDisposition("attachment")
			m.AddAttachment(a)
		}
	}

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		emailsSent.WithLabelValues("error").Inc()
		return 0, s.failed(ctx, err)
	}
	if resp.StatusCode != http.StatusAccepted {
		emailsSent.WithLabelValues("error").Inc()
		return resp.StatusCode, s.failed(ctx, fmt.Errorf("SendGrid error: %d - %s", resp.StatusCode, resp.Body))
	}

	emailsSent.WithLabelValues("ok").Inc()
	s.logger.InfoContext(ctx, "itinerary email sent", "destination", msg.Itinerary.Destination)
	return resp.StatusCode, nil
}

func (s *EmailSender) failed(ctx context.Context, err error) error {
	s.logger.ErrorContext(ctx, "email sending error", "error", err)
	return UpstreamError{Op: "send email", Message: "Failed to send email: " + err.Error(), Err: err}
}

// ─── Rendering ────────────────────────────────────────────────────────────────

func destinationOrDefault(it GeneratedItinerary) string {
	if it.Destination == "" {
		return "your destination"
	}
	return it.Destination
}

func EmailSubject(it GeneratedItinerary) string {
	return "Your Travel Itinerary to " + destinationOrDefault(it)
}

type slotView struct {
	Name       string
	Time       string
	Activities []string
}

type dayView struct {
	Day         int
	Date        string
	ArrivalInfo string
	Slots       []slotView
	Highlights  string
}

type emailView struct {
	Destination     string
	Summary         string
	PersonalMessage string
	Days            []dayView
	PackingList     []string
	LocalTips       []string
}

// orderedSlots yields morning, afternoon, evening first, then any other
// slot names the model invented, sorted.
func orderedSlots(slots map[string]TimeSlot) []slotView {
	known := []string{SlotMorning, SlotAfternoon, SlotEvening}
	var extra []string
	for name := range slots {
		if name != SlotMorning && name != SlotAfternoon && name != SlotEvening {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)

	views := make([]slotView, 0, len(slots))
	for _, name := range append(known, extra...) {
		slot, ok := slots[name]
		if !ok {
			continue
		}
		views = append(views, slotView{Name: titleCase(name), Time: slot.Time, Activities: slot.Activities})
	}
	return views
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func buildEmailView(it GeneratedItinerary, personalMessage string) emailView {
	v := emailView{
		Destination:     destinationOrDefault(it),
		Summary:         it.Summary,
		PersonalMessage: personalMessage,
		PackingList:     it.PackingList,
		LocalTips:       it.LocalTips,
	}
	for _, d := range it.DailyPlans {
		dv := dayView{
			Day:        d.Day,
			Date:       d.Date,
			Slots:      orderedSlots(d.TimeSlots),
			Highlights: strings.Join(d.Highlights, ", "),
		}
		if d.ArrivalInfo != nil {
			dv.ArrivalInfo = *d.ArrivalInfo
		}
		v.Days = append(v.Days, dv)
	}
	return v
}

var emailTemplate = template.Must(template.New("itinerary").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h1 style="color: #0066cc;">✈️ Your Travel Itinerary to {{.Destination}}</h1>
{{if .Summary}}<p class="summary" style="font-size: 16px;">{{.Summary}}</p>{{end}}
{{if .PersonalMessage}}<p class="personal-note" style="background: #f0f8ff; padding: 10px; border-radius: 5px;"><strong>Personal Note:</strong> {{.PersonalMessage}}</p>{{end}}
<h2 style="color: #0066cc; border-bottom: 2px solid #0066cc; padding-bottom: 5px;">📅 Daily Plans</h2>
{{range .Days}}<div class="day" style="margin-bottom: 25px; border: 1px solid #ddd; border-radius: 5px; padding: 15px; background: #f9f9f9;">
<h3 style="color: #0066cc;">Day {{.Day}}: {{.Date}}</h3>
{{if .ArrivalInfo}}<p class="arrival"><strong>✈️ Flight Arrival:</strong> {{.ArrivalInfo}}</p>{{end}}
{{range .Slots}}<div class="slot" style="margin: 15px 0;">
<h4 style="color: #0066cc; margin-bottom: 5px;">{{.Name}} ({{.Time}})</h4>
<ul style="margin-top: 5px; padding-left: 20px;">{{range .Activities}}<li style="margin-bottom: 5px;">{{.}}</li>{{end}}</ul>
</div>
{{end}}{{if .Highlights}}<p class="highlights" style="margin-top: 10px;"><strong>🌟 Highlights:</strong> {{.Highlights}}</p>{{end}}
</div>
{{end}}<div style="display: flex; margin-top: 30px;">
<div style="flex: 1; padding: 10px; background: #f0f8ff; border-radius: 5px; margin-right: 10px;">
<h3 style="color: #0066cc;">🧳 Packing List</h3>
<ul class="packing" style="padding-left: 20px;">{{range .PackingList}}<li style="margin-bottom: 5px;">{{.}}</li>{{end}}</ul>
</div>
<div style="flex: 1; padding: 10px; background: #f0f8ff; border-radius: 5px;">
<h3 style="color: #0066cc;">💡 Local Tips</h3>
<ul class="tips" style="padding-left: 20px;">{{range .LocalTips}}<li style="margin-bottom: 5px;">{{.}}</li>{{end}}</ul>
</div>
</div>
<p style="margin-top: 30px; text-align: center; font-style: italic;">Happy travels! ✈️🌍<br><span style="color: #0066cc;">Travel Planner Pro</span></p>
</div>
</body>
</html>`))

// RenderItineraryEmail renders the HTML body. Model and user text is escaped.
func RenderItineraryEmail(it GeneratedItinerary, personalMessage string) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, buildEmailView(it, personalMessage)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderItineraryText is the plain-text alternative part.
func RenderItineraryText(it GeneratedItinerary, personalMessage string) string {
	v := buildEmailView(it, personalMessage)

	var b strings.Builder
	fmt.Fprintf(&b, "Your Travel Itinerary to %s\n\n", v.Destination)
	if v.Summary != "" {
		b.WriteString(v.Summary + "\n\n")
	}
	if v.PersonalMessage != "" {
		fmt.Fprintf(&b, "Personal Note: %s\n\n", v.PersonalMessage)
	}
	for _, d := range v.Days {
		fmt.Fprintf(&b, "Day %d: %s\n", d.Day, d.Date)
		if d.ArrivalInfo != "" {
			fmt.Fprintf(&b, "  Flight Arrival: %s\n", d.ArrivalInfo)
		}
		for _, s := range d.Slots {
			fmt.Fprintf(&b, "  %s (%s)\n", s.Name, s.Time)
			for _, a := range s.Activities {
				fmt.Fprintf(&b, "    - %s\n", a)
			}
		}
		if d.Highlights != "" {
			fmt.Fprintf(&b, "  Highlights: %s\n", d.Highlights)
		}
		b.WriteString("\n")
	}
	writeList(&b, "Packing List", v.PackingList)
	writeList(&b, "Local Tips", v.LocalTips)
	b.WriteString("Happy travels!\nTravel Planner Pro\n")
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
	b.WriteString("\n")
}
