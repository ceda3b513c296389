package mail

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"
	"time"

	"github.com/hijo-electricity/hijo/internal/model"
)

var adminText = template.Must(template.New("admin").Parse(`NEW CONTACT FORM SUBMISSION

Name: {{.Name}}
Email: {{.Email}}
Phone: {{if .Phone}}{{.Phone}}{{else}}Not provided{{end}}

Message:
{{.Message}}

Received: {{.Received}}
Contact ID: {{.ID}}`))

var adminHTML = htmltemplate.Must(htmltemplate.New("admin").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2>New Contact Message</h2>
<p><strong>Name:</strong> {{.Name}}<br>
<strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a><br>
<strong>Phone:</strong> {{if .Phone}}{{.Phone}}{{else}}<em>Not provided</em>{{end}}</p>
<p style="white-space: pre-line;">{{.Message}}</p>
<p style="font-size: 12px; color: #666;">Received: {{.Received}} &middot; Contact ID: {{.ID}}</p>
</div>`))

var visitorText = template.Must(template.New("visitor").Parse(`Dear {{.Name}},

Thank you for reaching out to Hijo Electricity!

We have received your message and will get back to you as soon as possible.

Your Message:
"{{.Message}}"

Best regards,
Hijo Electricity Team`))

var visitorHTML = htmltemplate.Must(htmltemplate.New("visitor").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2>Dear {{.Name}},</h2>
<p>Thank you for reaching out to <strong>Hijo Electricity</strong>! We have received your message and will get back to you as soon as possible.</p>
<blockquote style="white-space: pre-line; color: #666;">{{.Message}}</blockquote>
<p>Best regards,<br><strong>Hijo Electricity Team</strong></p>
</div>`))

type contactView struct {
	ID       int64
	Name     string
	Email    string
	Phone    string
	Message  string
	Received string
}

func view(c *model.Contact) contactView {
	v := contactView{
		ID:       c.ID,
		Name:     c.Name,
		Email:    c.Email,
		Message:  c.Message,
		Received: c.CreatedAt.UTC().Format(time.RFC1123),
	}
	if c.Phone != nil {
		v.Phone = *c.Phone
	}
	return v
}

func render(text *template.Template, html *htmltemplate.Template, data interface{}) (string, string, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return "", "", err
	}
	if err := html.Execute(&hb, data); err != nil {
		return "", "", err
	}
	return tb.String(), hb.String(), nil
}

// AdminNotification tells the site owner about a new contact. Replies go to
// the visitor.
func AdminNotification(c *model.Contact, adminAddress string) (*Message, error) {
	text, html, err := render(adminText, adminHTML, view(c))
	if err != nil {
		return nil, err
	}
	return &Message{
		To:      adminAddress,
		ReplyTo: c.Email,
		Subject: "🔔 New Contact: " + c.Name,
		Text:    text,
		HTML:    html,
	}, nil
}

// VisitorConfirmation thanks the visitor for their message.
func VisitorConfirmation(c *model.Contact) (*Message, error) {
	text, html, err := render(visitorText, visitorHTML, view(c))
	if err != nil {
		return nil, err
	}
	return &Message{
		To:      c.Email,
		Subject: "Thank you for contacting Hijo Electricity ⚡",
		Text:    text,
		HTML:    html,
	}, nil
}
