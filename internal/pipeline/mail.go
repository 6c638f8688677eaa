package pipeline

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"

	"coretax/internal/util"
)

// MailContent is what the invoice pipeline needs from one raw message.
type MailContent struct {
	Subject         string
	Text            string
	HTMLText        string
	PDFs            []File
	AttachmentNames []string
}

// ReadMail parses a raw RFC 822 message and collects every PDF part.
func ReadMail(raw []byte) (MailContent, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return MailContent{}, err
	}

	out := MailContent{
		Subject:  env.GetHeader("Subject"),
		Text:     env.Text,
		HTMLText: htmlToText(env.HTML),
	}

	parts := make([]*enmime.Part, 0, len(env.Attachments)+len(env.Inlines)+len(env.OtherParts))
	parts = append(parts, env.Attachments...)
	parts = append(parts, env.Inlines...)
	parts = append(parts, env.OtherParts...)

	for i, part := range parts {
		filename := strings.TrimSpace(part.FileName)
		if filename == "" {
			filename = fmt.Sprintf("attachment-%d", i+1)
		}
		if isPDFPart(filename, part.ContentType, part.Content) {
			if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
				filename += ".pdf"
			}
			out.PDFs = append(out.PDFs, File{Name: filename, Data: part.Content})
		}
		out.AttachmentNames = append(out.AttachmentNames, filename)
	}

	return out, nil
}

func isPDFPart(filename, contentType string, content []byte) bool {
	if len(content) == 0 {
		return false
	}
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return true
	}
	if strings.EqualFold(contentType, "application/pdf") {
		return true
	}
	return bytes.HasPrefix(content, []byte("%PDF-"))
}

func htmlToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style").Remove()
	return util.CollapseSpaces(doc.Text())
}
