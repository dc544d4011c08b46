package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDigest(t *testing.T) {
	t.Parallel()

	subject, html, err := NewDigestRenderer().RenderDigest(context.Background(), "owner-1", "brand-42")
	require.NoError(t, err)

	assert.Contains(t, subject, "weekly digest")
	assert.Contains(t, html, "brand-42")
	assert.Contains(t, html, "<h2>")
}

func TestRenderDigest_EscapesBrandID(t *testing.T) {
	t.Parallel()

	_, html, err := NewDigestRenderer().RenderDigest(context.Background(), "owner-1", `<script>alert(1)</script>`)
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
}
