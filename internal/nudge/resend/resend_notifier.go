package resend

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/brk3/habitcal/internal/nudge"
	"github.com/resend/resend-go/v2"
)

type emailSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendNotifier struct {
	From  string
	Email string

	emails emailSender
}

func New(apiKey, from, email string) *ResendNotifier {
	return &ResendNotifier{
		From:   from,
		Email:  email,
		emails: resend.NewClient(apiKey).Emails,
	}
}

var digestTemplate = template.Must(template.New("email").Parse(`
{{if .Expiring}}
<p>The following habit streaks are expiring within the next {{.Hours}} hours:</p>
<ul>
{{range .Expiring}}
  <li>{{.}}</li>
{{end}}
</ul>
{{end}}
{{if .Pending}}
<p>Still to track on {{.Date}}:</p>
<ul>
{{range .Pending}}
  <li>{{.Habit}} ({{range $i, $t := .Times}}{{if $i}}, {{end}}{{$t}}{{end}})</li>
{{end}}
</ul>
{{end}}
`))

func render(d nudge.Digest) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func subject(d nudge.Digest) string {
	switch {
	case len(d.Expiring) > 0:
		return "Streaks are expiring soon"
	default:
		return fmt.Sprintf("Habits to track today (%d)", len(d.Pending))
	}
}

func (r *ResendNotifier) SendNudge(_ context.Context, d nudge.Digest) error {
	html, err := render(d)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    r.From,
		To:      []string{r.Email},
		Subject: subject(d),
		Html:    html,
	}
	_, err = r.emails.Send(params)
	return err
}
