package gmail

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/dmitrymomot/notemail/pkg/mailer"
)

// buildMIME assembles a multipart/alternative message with text and HTML
// parts. From is left unset; Gmail fills in the authenticated account.
func buildMIME(msg mailer.Message, now time.Time) ([]byte, error) {
	to, err := mail.ParseAddressList(strings.Join(msg.To, ", "))
	if err != nil {
		return nil, err
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	for k, v := range msg.Headers {
		h.Set(k, v)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	if err := writePart(iw, "text/plain", msg.PlainText()); err != nil {
		return nil, err
	}
	if err := writePart(iw, "text/html", msg.HTML); err != nil {
		return nil, err
	}
	if err := iw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writePart(iw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")

	w, err := iw.CreatePart(ph)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
