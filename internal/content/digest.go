// Package content holds the default digest renderer. The real
// content-generation pipeline is an upstream collaborator; this template
// keeps the email_send digest path runnable without it.
package content

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

var digestTemplate = template.Must(template.New("digest").Parse(`
<h2>Weekly summary for {{.BrandID}}</h2>
<p>Here is what happened for your business in the week ending {{.WeekEnding}}.</p>
<p>Open your dashboard for the full breakdown.</p>
`))

// DigestRenderer produces the weekly digest email body.
type DigestRenderer struct{}

func NewDigestRenderer() *DigestRenderer {
	return &DigestRenderer{}
}

func (r *DigestRenderer) RenderDigest(ctx context.Context, ownerID, brandID string) (string, string, error) {
	data := struct {
		BrandID    string
		WeekEnding string
	}{
		BrandID:    brandID,
		WeekEnding: time.Now().UTC().Format("Jan 2, 2006"),
	}

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("execute digest template: %w", err)
	}

	subject := fmt.Sprintf("Your weekly digest for %s", data.WeekEnding)
	return subject, buf.String(), nil
}
