package mail

import (
	"bytes"
	"html/template"
)

const welcomeTpl = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#333">Welcome to the VibeCodingWiki newsletter</h2>
  <p>You are now subscribed with <strong>{{.Email}}</strong>. We send occasional
  digests of new and updated wiki pages.</p>
  <p style="color:#999;font-size:12px">Didn't subscribe? You can safely ignore
  this email, or unsubscribe at any time from any newsletter issue.</p>
</div>
</body>
</html>`

var welcomeTemplate = template.Must(template.New("welcome").Parse(welcomeTpl))

// RenderWelcome produces the HTML body for the subscription welcome email.
func RenderWelcome(email string) (string, error) {
	var buf bytes.Buffer
	err := welcomeTemplate.Execute(&buf, struct{ Email string }{Email: email})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
