package report

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"

	"golang.org/x/net/idna"
)

var emailTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; color: #1f2933;">
  <p>Hi {{.FirstName}},</p>
  <p>Thank you for completing the assessment. Your profile is <strong>{{.ArchetypeName}}</strong>.</p>
  {{- with .Quote}}
  <blockquote style="border-left: 3px solid #9aa5b1; padding-left: 12px; color: #52606d;">{{.}}</blockquote>
  {{- end}}
  <p><a href="{{.DownloadURL}}">Download your full profile report (PDF)</a></p>
  <p style="font-size: 12px; color: #7b8794;">This link expires in {{.ExpiresIn}}. After that, retake the assessment to get a new report.</p>
</body>
</html>
`))

type emailData struct {
	FirstName     string
	ArchetypeName string
	Quote         string
	DownloadURL   string
	ExpiresIn     string
}

func renderEmail(d emailData) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render report email: %w", err)
	}
	return buf.String(), nil
}

// normalizeEmail accepts a bare address and returns it with an ASCII,
// lower-cased domain.
func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", err
	}
	if addr.Name != "" || addr.Address != strings.TrimSpace(raw) {
		return "", errors.New("expected a bare address")
	}
	at := strings.LastIndexByte(addr.Address, '@')
	local, domain := addr.Address[:at], addr.Address[at+1:]
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", fmt.Errorf("invalid domain: %w", err)
	}
	if !strings.Contains(ascii, ".") {
		return "", errors.New("domain must be fully qualified")
	}
	return local + "@" + strings.ToLower(ascii), nil
}
