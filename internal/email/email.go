// Package email delivers the digest to Resend audience subscribers.
package email

import (
	"bytes"
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hunkim/botmadang-digest/internal/logger"
)

// batchSize is the Resend batch endpoint limit.
const batchSize = 100

// SendResult reports how a delivery run went.
type SendResult struct {
	Skipped bool   // not configured, or no one to send to
	Reason  string // why the run was skipped
	Sent    int    // recipients delivered to
	Errors  int    // recipients in failed batches
	Total   int    // active subscribers
}

// Sender delivers a rendered digest to every active contact of one Resend
// audience.
type Sender struct {
	client     *resend.Client
	audienceID string
	from       string
}

// NewSender creates a Sender. Returns nil when apiKey or audienceID is
// empty; a nil Sender skips delivery instead of failing the run.
func NewSender(apiKey, audienceID, from string) *Sender {
	if apiKey == "" || audienceID == "" {
		return nil
	}
	return &Sender{
		client:     resend.NewClient(apiKey),
		audienceID: audienceID,
		from:       from,
	}
}

// SendDigest converts the digest markdown to email HTML and sends it to
// every subscribed contact, 100 recipients per batch. A failed batch is
// counted and logged but does not stop the remaining batches.
func (s *Sender) SendDigest(ctx context.Context, digestMD, dateStr string) SendResult {
	if s == nil {
		logger.Info("email not configured, skipping delivery")
		return SendResult{Skipped: true, Reason: "not configured"}
	}

	active, err := s.activeContacts(ctx)
	if err != nil {
		logger.Error("listing audience contacts failed", err)
		return SendResult{Skipped: true, Reason: "contact listing failed"}
	}
	if len(active) == 0 {
		logger.Info("no active subscribers, skipping delivery")
		return SendResult{Skipped: true, Reason: "no active contacts"}
	}
	logger.Info("sending digest email", "subscribers", len(active))

	htmlContent, err := RenderHTML(digestMD)
	if err != nil {
		logger.Error("rendering email HTML failed", err)
		return SendResult{Skipped: true, Reason: "markdown rendering failed"}
	}
	subject := fmt.Sprintf("🤖 봇마당 오늘의 소식 | %s", dateStr)

	result := SendResult{Total: len(active)}
	for start := 0; start < len(active); start += batchSize {
		end := start + batchSize
		if end > len(active) {
			end = len(active)
		}
		batch := active[start:end]

		emails := make([]*resend.SendEmailRequest, len(batch))
		for i, contact := range batch {
			emails[i] = &resend.SendEmailRequest{
				From:    s.from,
				To:      []string{contact.Email},
				Subject: subject,
				Html:    htmlContent,
			}
		}

		if _, err := s.client.Batch.SendWithContext(ctx, emails); err != nil {
			result.Errors += len(batch)
			logger.Error("email batch failed", err, "batch_start", start)
			continue
		}
		result.Sent += len(batch)
		logger.Info("email batch sent", "delivered", result.Sent, "total", result.Total)
	}

	logger.Info("email delivery finished", "sent", result.Sent, "errors", result.Errors)
	return result
}

// activeContacts lists the audience and drops unsubscribed contacts.
func (s *Sender) activeContacts(ctx context.Context) ([]resend.Contact, error) {
	listed, err := s.client.Contacts.ListWithContext(ctx, s.audienceID)
	if err != nil {
		return nil, fmt.Errorf("listing contacts for audience %s: %w", s.audienceID, err)
	}

	active := make([]resend.Contact, 0, len(listed.Data))
	for _, contact := range listed.Data {
		if contact.Unsubscribed {
			continue
		}
		active = append(active, contact)
	}
	return active, nil
}

// markdownToHTML renders GFM markdown with hard line breaks, matching how
// the digest reads on the site.
var markdownToHTML = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderHTML wraps the converted digest in the email shell: gradient
// header, content column, footer with the Resend unsubscribe placeholder.
func RenderHTML(digestMD string) (string, error) {
	var body bytes.Buffer
	if err := markdownToHTML.Convert([]byte(digestMD), &body); err != nil {
		return "", fmt.Errorf("converting digest markdown: %w", err)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="ko">
<head><meta charset="UTF-8"></head>
<body style="max-width:600px; margin:0 auto; padding:20px; font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',sans-serif; color:#1a1a1a; line-height:1.7; background:#fff;">
<div style="background:linear-gradient(135deg,#667eea 0%%,#764ba2 100%%); padding:24px; border-radius:12px; color:white; margin-bottom:24px; text-align:center;">
  <h1 style="margin:0; font-size:22px;">🤖 봇마당 오늘의 소식</h1>
  <p style="margin:8px 0 0; opacity:0.9; font-size:14px;">매일 아침 7시에 업데이트 ⏰</p>
</div>
<div style="font-size:15px;">
%s
</div>
<hr style="border:none; border-top:1px solid #eee; margin:32px 0;">
<div style="text-align:center; color:#999; font-size:12px;">
  <p><a href="https://botmadang.org" style="color:#667eea;">botmadang.org</a>에서 더 많은 소식을 만나보세요!</p>
  <p style="margin-top:8px;"><a href="{{{RESEND_UNSUBSCRIBE_URL}}}" style="color:#999;">구독 취소</a></p>
</div>
</body>
</html>`, body.String()), nil
}
