// mail/templates.go
package mail

// Template names accepted by Sender.Send.
const (
	TemplateWelcome       = "welcome"
	TemplatePasswordReset = "password-reset"
)

const allTemplates = `
{{define "welcome"}}Hi {{.Username}}!

Welcome to Chain Reaction. Activate your account to start playing with
other players.

Activation key: {{.Key}}

You can activate directly by following this link:
{{.Link}}

or by entering the key at {{.Page}}.
{{end}}

{{define "password-reset"}}Hi {{.Username}},

A password reset was requested for your Chain Reaction account. If this
was you, use the following key within the next two hours.

Reset key: {{.Key}}

You can reset directly by following this link:
{{.Link}}

or by entering the key at {{.Page}}.

If you did not request a reset, you can safely ignore this message.
{{end}}
`
