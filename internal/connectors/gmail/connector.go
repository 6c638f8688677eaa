package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"coretax/internal"
	"coretax/internal/config"
)

// pageSize is the Gmail list maximum.
const pageSize = 500

type Connector struct {
	service *gmail.Service
	query   string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	for _, req := range [][2]string{
		{"GMAIL_CLIENT_ID", cfg.GmailClientID},
		{"GMAIL_CLIENT_SECRET", cfg.GmailClientSecret},
		{"GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken},
	} {
		if err := cfg.Require(req[0], req[1]); err != nil {
			return nil, err
		}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	ctx := context.Background()
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	return &Connector{service: svc, query: searchQuery(cfg.MailSubjectFilter)}, nil
}

// FetchInbox pages through the label until max PDF-bearing messages are listed.
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	ids, err := c.list(ctx, label, max)
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(ids))
	for _, id := range ids {
		resp, err := c.service.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", id, err)
		}
		if resp.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(resp.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, fromRaw(raw, id, resp.InternalDate))
	}
	return out, nil
}

func (c *Connector) list(ctx context.Context, label string, max int) ([]string, error) {
	ids := make([]string, 0, max)
	token := ""
	for len(ids) < max {
		call := c.service.Users.Messages.List("me").LabelIds(label).Q(c.query).MaxResults(int64(min(max-len(ids), pageSize)))
		if token != "" {
			call = call.PageToken(token)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", label, err)
		}
		for _, m := range resp.Messages {
			if m.Id != "" {
				ids = append(ids, m.Id)
			}
		}
		if token = resp.NextPageToken; token == "" || len(resp.Messages) == 0 {
			break
		}
	}
	return ids, nil
}

// fromRaw reads identity headers from the message itself; Gmail ids are the fallback.
func fromRaw(raw []byte, gmailID string, internalDateMs int64) internal.FetchedMailMessage {
	out := internal.FetchedMailMessage{Provider: "gmail", MessageID: gmailID, Raw: raw}

	received := time.UnixMilli(internalDateMs)
	if internalDateMs == 0 {
		received = time.Now()
	}
	if msg, err := mail.ReadMessage(bytes.NewReader(raw)); err == nil {
		h := msg.Header
		if id := strings.TrimSpace(h.Get("Message-ID")); id != "" {
			out.MessageID = id
		}
		out.Subject = decodeHeader(h.Get("Subject"))
		out.From = decodeHeader(h.Get("From"))
		if d, err := h.Date(); err == nil {
			received = d
		}
	}
	out.ReceivedAt = received.UTC().Format(time.RFC3339)
	return out
}

func decodeHeader(v string) string {
	var dec mime.WordDecoder
	if s, err := dec.DecodeHeader(v); err == nil {
		return s
	}
	return v
}

// searchQuery limits listing to mail that can carry a tax invoice.
func searchQuery(subject string) string {
	q := "has:attachment filename:pdf"
	if subject = strings.TrimSpace(subject); subject != "" {
		q += fmt.Sprintf(" subject:(%s)", subject)
	}
	return q
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
