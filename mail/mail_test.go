package mail

import (
	"bytes"
	"strings"
	"testing"
	"text/template"
)

func TestTemplates_Render(t *testing.T) {
	tmpl, err := template.New("mail").Parse(allTemplates)
	if err != nil {
		t.Fatalf("Templates failed to parse: %v", err)
	}

	data := map[string]string{
		"Username": "alice77",
		"Key":      "PUBLIC-KEY-TAIL",
		"Link":     "http://localhost:5555/activate?q=x&_token=y",
		"Page":     "http://localhost:5555/activate?username=alice77",
	}
	for _, name := range []string{TemplateWelcome, TemplatePasswordReset} {
		var body bytes.Buffer
		if err := tmpl.ExecuteTemplate(&body, name, data); err != nil {
			t.Fatalf("Rendering %q failed: %v", name, err)
		}
		out := body.String()
		for _, want := range []string{"alice77", "PUBLIC-KEY-TAIL", data["Link"]} {
			if !strings.Contains(out, want) {
				t.Errorf("Template %q is missing %q:\n%s", name, want, out)
			}
		}
	}
}

func TestNewSMTPSender_ParsesTemplates(t *testing.T) {
	sender, err := NewSMTPSender("smtp.example.com", 465, "noreply@example.com", "password")
	if err != nil {
		t.Fatalf("NewSMTPSender failed: %v", err)
	}
	if sender.templates.Lookup(TemplateWelcome) == nil {
		t.Error("The welcome template should be registered")
	}
	if sender.templates.Lookup(TemplatePasswordReset) == nil {
		t.Error("The password-reset template should be registered")
	}
}
