package filter

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// MIME trees deeper than this are not descended into
const maxMIMEDepth = 8

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// charsetReader decodes any charset known to the WHATWG encoding index
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// decodeEncodedHeader decodes RFC 2047 encoded words, returning the input
// unchanged when it cannot be decoded
func decodeEncodedHeader(value string) (string, error) {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value, err
	}
	return decoded, nil
}

// ParseMessage converts a raw RFC 5322 message into a core.Email. The
// envelope sender and recipients take precedence over the headers when set.
func ParseMessage(raw []byte, envelopeFrom string, recipients []string) (*core.Email, *mail.Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	email := &core.Email{
		FromEmail: envelopeFrom,
		To:        recipients,
		Headers:   flattenHeaders(msg.Header),
	}
	email.Subject, _ = decodeEncodedHeader(msg.Header.Get("Subject"))

	if addr, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		email.FromName = addr.Name
		if email.FromEmail == "" {
			email.FromEmail = addr.Address
		}
	}

	if len(email.To) == 0 {
		if list, err := msg.Header.AddressList("To"); err == nil {
			for _, addr := range list {
				email.To = append(email.To, addr.Address)
			}
		}
	}

	var content messageContent
	if err := content.walk(textproto.MIMEHeader(msg.Header), msg.Body, 0); err != nil {
		return nil, nil, fmt.Errorf("failed to read message content: %w", err)
	}
	email.Body = content.body()
	email.Attachments = content.attachments

	return email, msg, nil
}

// flattenHeaders keeps the first value of each header. Received values are
// joined by newlines so the hop count survives.
func flattenHeaders(header mail.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		if key == "Received" {
			out[key] = strings.Join(values, "\n")
			continue
		}
		out[key] = values[0]
	}
	return out
}

// messageContent collects the readable text and attachment metadata of a
// MIME tree
type messageContent struct {
	text        strings.Builder
	html        strings.Builder
	attachments []core.Attachment
}

func (c *messageContent) body() string {
	if c.text.Len() > 0 {
		return strings.TrimRight(c.text.String(), "\r\n")
	}
	return strings.TrimRight(c.html.String(), "\r\n")
}

func (c *messageContent) walk(header textproto.MIMEHeader, body io.Reader, depth int) error {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		mediaType, params = "text/plain", nil
	}

	if strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" && depth < maxMIMEDepth {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				// Keep what was read before the damage
				if c.text.Len() > 0 || c.html.Len() > 0 || len(c.attachments) > 0 {
					return nil
				}
				return err
			}
			if err := c.walk(part.Header, part, depth+1); err != nil {
				return err
			}
		}
	}

	decoded := transferDecoder(header, body)

	if name := attachmentName(header, params); name != "" {
		size, err := io.Copy(io.Discard, decoded)
		if err != nil {
			return fmt.Errorf("failed to read attachment %q: %w", name, err)
		}
		c.attachments = append(c.attachments, core.Attachment{
			Filename: name,
			Size:     size,
			MimeType: mediaType,
		})
		return nil
	}

	switch mediaType {
	case "text/plain", "text/html":
	default:
		_, err := io.Copy(io.Discard, decoded)
		return err
	}

	reader := decoded
	if charset := params["charset"]; charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "us-ascii") {
		if r, err := charsetReader(charset, decoded); err == nil {
			reader = r
		}
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read %s part: %w", mediaType, err)
	}

	target := &c.text
	if mediaType == "text/html" {
		target = &c.html
	}
	target.Write(data)
	target.WriteString("\n")
	return nil
}

// transferDecoder undoes the Content-Transfer-Encoding. multipart.Reader
// already strips quoted-printable from parts.
func transferDecoder(header textproto.MIMEHeader, body io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Transfer-Encoding"))) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	default:
		return body
	}
}

// attachmentName returns the file name of an attachment part, or "" for
// inline content
func attachmentName(header textproto.MIMEHeader, contentParams map[string]string) string {
	disposition, dispParams, err := mime.ParseMediaType(header.Get("Content-Disposition"))
	name := ""
	if err == nil {
		name = dispParams["filename"]
	}
	if name == "" {
		name = contentParams["name"]
	}
	if name == "" && err == nil && disposition == "attachment" {
		name = "unnamed"
	}
	if name == "" {
		return ""
	}
	decoded, _ := decodeEncodedHeader(name)
	return decoded
}
