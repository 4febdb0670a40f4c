package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

var (
	verificationTmpl = template.Must(template.New("verification").Parse(
		`<h1>Exam App</h1>
<h2>Welcome, {{.Name}}!</h2>
<p>Please verify your email address by clicking the link below:</p>
<a href="{{.Link}}">Verify your account</a>
<p>If you didn't create this account, ignore this email.</p>
`))
	resetTmpl = template.Must(template.New("reset").Parse(
		`<h1>Exam App</h1>
<h2>Reset your password</h2>
<p>Click the link below to reset your password:</p>
<a href="{{.Link}}">Reset your password</a>
<p>This link expires in {{.Minutes}} minutes.</p>
`))
	loginCodeTmpl = template.Must(template.New("login_code").Parse(
		`<h1>Exam App</h1>
<p>Your login code is: {{.Code}}. It expires in {{.Minutes}} minutes.</p>
`))
)

// Composer renders the account emails. Links point at the front end.
type Composer struct {
	baseURL string
}

func NewComposer(baseURL string) *Composer {
	return &Composer{baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Composer) Verification(to, firstName, token string) (Message, error) {
	html, err := render(verificationTmpl, map[string]any{
		"Name": firstName,
		"Link": template.URL(c.link("/register/verify", token)),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Verify your Exam API account", HTML: html}, nil
}

func (c *Composer) PasswordReset(to, token string, minutes int) (Message, error) {
	html, err := render(resetTmpl, map[string]any{
		"Link":    template.URL(c.link("/login/reset-password", token)),
		"Minutes": minutes,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Reset your password", HTML: html}, nil
}

func (c *Composer) LoginCode(to, code string, minutes int) (Message, error) {
	html, err := render(loginCodeTmpl, map[string]any{"Code": code, "Minutes": minutes})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Login code", HTML: html}, nil
}

func (c *Composer) link(path, token string) string {
	return c.baseURL + path + "?" + url.Values{"token": {token}}.Encode()
}

func render(t *template.Template, data any) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
