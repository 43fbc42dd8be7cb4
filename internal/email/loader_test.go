package email

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/playground/internal/errors"
)

const ampBody = `<!doctype html><html ⚡4email><head></head><body>Hello</body></html>`

// crlf converts a readable fixture into wire format.
func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func alternative(ampPart string) string {
	return crlf(`From: sender@example.com
To: rcpt@example.com
Subject: Hello
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="alt"

--alt
Content-Type: text/plain; charset=utf-8

Hello
--alt
` + ampPart + `
--alt
Content-Type: text/html; charset=utf-8

<p>Hello</p>
--alt--
`)
}

func TestExtract(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(ampBody))
	var wrapped strings.Builder
	for len(encoded) > 20 {
		wrapped.WriteString(encoded[:20] + "\n")
		encoded = encoded[20:]
	}
	wrapped.WriteString(encoded)

	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "alternative part",
			raw: alternative(`Content-Type: text/x-amp-html; charset=utf-8

` + ampBody),
		},
		{
			name: "quoted printable",
			raw: alternative(`Content-Type: text/x-amp-html; charset=utf-8
Content-Transfer-Encoding: quoted-printable

<!doctype html><html =E2=9A=A14email><head></head><body>Hel=
lo</body></html>`),
		},
		{
			name: "base64",
			raw: alternative(`Content-Type: text/x-amp-html; charset=utf-8
Content-Transfer-Encoding: base64

` + wrapped.String()),
		},
		{
			name: "nested in mixed",
			raw: crlf(`MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain

Hello
--inner
Content-Type: text/x-amp-html

` + ampBody + `
--inner--

--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="a.pdf"

%PDF
--outer--
`),
		},
		{
			name: "single part message",
			raw: crlf(`MIME-Version: 1.0
Content-Type: text/x-amp-html; charset=utf-8

`) + ampBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, ampBody, got)
		})
	}
}

func TestExtract_NoAMPPart(t *testing.T) {
	raw := crlf(`MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="alt"

--alt
Content-Type: text/plain

Hello
--alt--
`)
	_, err := Extract([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoAMPPart)
	assert.True(t, errors.IsUserFacing(err))
	assert.Contains(t, err.Error(), AMPContentType)
}

func TestExtract_PlainMessageHasNoAMPPart(t *testing.T) {
	_, err := Extract([]byte(crlf("Subject: hi\n\nHello\n")))
	assert.ErrorIs(t, err, errors.ErrNoAMPPart)
}

func TestExtract_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not a message", crlf("this is not an email\n\nbody\n")},
		{"bad content type", crlf("Content-Type: multipart/\n\nbody\n")},
		{"multipart without boundary", crlf("Content-Type: multipart/alternative\n\nbody\n")},
		{"unterminated multipart", crlf("Content-Type: multipart/alternative; boundary=\"alt\"\n\n--alt\nContent-Type: text/plain\n\nHello\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract([]byte(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrEmailMalformed)
			assert.True(t, errors.IsUserFacing(err))
		})
	}
}

func TestFileLoader_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "message.eml")
	require.NoError(t, os.WriteFile(path, []byte(alternative("Content-Type: text/x-amp-html\n\n"+ampBody)), 0o600))

	got, err := NewFileLoader(nil).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, ampBody, got)
}

func TestFileLoader_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.eml")
	_, err := NewFileLoader(nil).Load(context.Background(), path)

	var uv *errors.UserVisibleError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, path, uv.Target)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileLoader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileLoader(nil).Load(ctx, "ignored.eml")
	assert.ErrorIs(t, err, context.Canceled)
}
