package mailbox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func TestHTMLToText_StripsMarkupAndScripts(t *testing.T) {
	in := `<html><head><style>p{color:red}</style></head><body>
		<h1>Avis d'échéance</h1>
		<script>alert("x")</script>
		<p>Votre loyer de <b>650€</b> est dû le 5 septembre.</p>
		<div>Bailleur: Habitat Social</div>
	</body></html>`

	out, err := HTMLToText(in)
	require.NoError(t, err)

	assert.Contains(t, out, "Avis d'échéance")
	assert.Contains(t, out, "Votre loyer de 650€ est dû le 5 septembre.")
	assert.Contains(t, out, "Bailleur: Habitat Social")
	assert.NotContains(t, out, "alert")
	assert.NotContains(t, out, "color:red")
	assert.NotContains(t, out, "<")
}

func TestHTMLToText_Fragment(t *testing.T) {
	out, err := HTMLToText(`<p>Bonjour</p><p>Votre attestation est jointe.</p>`)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour\nVotre attestation est jointe.", out)
}

func TestExtractBody_PrefersPlainText(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "text/plain; charset=UTF-8",
				Body:     &gmail.MessagePartBody{Data: b64("Bonjour, votre facture est jointe.")},
			},
			{
				MimeType: "text/html; charset=UTF-8",
				Body:     &gmail.MessagePartBody{Data: b64("<p>Bonjour, votre facture est jointe.</p>")},
			},
		},
	}

	body, err := ExtractBody(payload)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour, votre facture est jointe.", body)
}

func TestExtractBody_FallsBackToHTML(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "text/html",
		Body:     &gmail.MessagePartBody{Data: b64("<div>Quittance de loyer septembre</div>")},
	}

	body, err := ExtractBody(payload)
	require.NoError(t, err)
	assert.Equal(t, "Quittance de loyer septembre", body)
}

func TestExtractBody_IgnoresAttachments(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				Filename: "facture.pdf",
				MimeType: "application/pdf",
				Body:     &gmail.MessagePartBody{Data: b64("%PDF-1.4 binary")},
			},
		},
	}

	body, err := ExtractBody(payload)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
