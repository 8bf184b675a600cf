package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	texttemplate "text/template"
	"time"
)

const verificationSubject = "🔐 Your Weather App Verification Code"

// VerificationData is passed to the verification templates.
type VerificationData struct {
	Email     string
	Code      string
	ExpiresIn time.Duration
	AppName   string
}

// Minutes rounds the remaining validity up to whole minutes.
func (d VerificationData) Minutes() int {
	return int(math.Ceil(d.ExpiresIn.Minutes()))
}

const verificationText = `Hi {{.Email}},

Your {{.AppName}} verification code is:

{{.Code}}

Expires in {{.Minutes}} minutes.

If you did not create an account, you can ignore this email.
`

const verificationHTML = `<div style="font-family: Arial, sans-serif; max-width: 480px; margin: 0 auto;">
  <h2 style="color: #4a90e2;">{{.AppName}}</h2>
  <p>Your verification code is:</p>
  <p style="font-size: 32px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
  <p>Expires in {{.Minutes}} minutes.</p>
</div>
`

var (
	textTemplate = texttemplate.Must(texttemplate.New("verification.txt").Parse(verificationText))
	htmlTemplate = template.Must(template.New("verification.html").Parse(verificationHTML))
)

func renderVerification(data VerificationData) (string, string, error) {
	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, data); err != nil {
		return "", "", fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("render html body: %w", err)
	}
	return text.String(), html.String(), nil
}
