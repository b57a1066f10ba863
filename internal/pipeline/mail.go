package pipeline

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"

	"nakasem/internal/logging"
	"nakasem/internal/util"
)

// MailDocument is one source inside an email: an attachment, or the body.
type MailDocument struct {
	Name  string
	Pages []Page
}

type MailContent struct {
	Subject         string
	Text            string
	HTML            string
	AttachmentNames []string
	Documents       []MailDocument
}

const mailBodyName = "email-body"

// ParseMail reads a raw RFC 822 message. Supported attachments and inline
// images become documents; the body becomes a text document of its own.
func ParseMail(ctx context.Context, raw []byte, rasterizer Rasterizer, log *zap.Logger) (MailContent, error) {
	log = logging.OrNop(log)

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return MailContent{}, err
	}

	content := MailContent{
		Subject: env.GetHeader("Subject"),
		Text:    env.Text,
		HTML:    env.HTML,
	}

	parts := append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...)
	for i, att := range parts {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment-" + strconv.Itoa(i+1) + extensionForContentType(att.ContentType)
		}
		content.AttachmentNames = append(content.AttachmentNames, filename)
		if !IsSupportedDocument(filename) {
			continue
		}

		pages, err := LoadPagesFromBytes(ctx, filename, att.Content, rasterizer)
		if err != nil {
			log.Warn("attachment skipped", zap.String("attachment", filename), zap.Error(err))
			continue
		}
		if len(pages) > 0 {
			content.Documents = append(content.Documents, MailDocument{Name: filename, Pages: pages})
		}
	}

	body := env.Text
	if strings.Contains(strings.ToLower(env.HTML), "<table") || strings.TrimSpace(body) == "" {
		if flattened := htmlToText(env.HTML); flattened != "" {
			body = flattened
		}
	}
	if strings.TrimSpace(body) != "" {
		content.Documents = append(content.Documents, MailDocument{
			Name:  mailBodyName,
			Pages: []Page{{Number: 1, Text: body}},
		})
	}

	return content, nil
}

// htmlToText flattens an HTML body to lines: one per table row, paragraph,
// list item or line break.
func htmlToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script,style,head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")

	var lines []string
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			if v := util.NormalizeSpaces(cell.Text()); v != "" {
				cells = append(cells, v)
			}
		})
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, " "))
		}
	})
	doc.Find("table").Remove()

	doc.Find("p,div,li,h1,h2,h3,h4").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Filter("p,div,li").Length() > 0 {
			return
		}
		for _, line := range strings.Split(s.Text(), "\n") {
			if v := util.NormalizeSpaces(line); v != "" {
				lines = append(lines, v)
			}
		}
	})

	if len(lines) == 0 {
		for _, line := range strings.Split(doc.Text(), "\n") {
			if v := util.NormalizeSpaces(line); v != "" {
				lines = append(lines, v)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func extensionForContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/tiff":
		return ".tiff"
	default:
		return ""
	}
}
