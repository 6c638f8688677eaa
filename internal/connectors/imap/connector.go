package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"coretax/internal"
	"coretax/internal/config"
)

type Connector struct {
	addr     string
	host     string
	secure   bool
	user     string
	password string
	markSeen bool
	subject  string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	for _, req := range [][2]string{
		{"IMAP_HOST", cfg.IMAPHost},
		{"IMAP_USER", cfg.IMAPUser},
		{"IMAP_PASSWORD", cfg.IMAPPassword},
	} {
		if err := cfg.Require(req[0], req[1]); err != nil {
			return nil, err
		}
	}

	return &Connector{
		addr:     fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort),
		host:     cfg.IMAPHost,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
		subject:  strings.TrimSpace(cfg.MailSubjectFilter),
	}, nil
}

// FetchInbox downloads unseen messages that carry at least one PDF part.
// Messages without a PDF are left untouched on the server.
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	client, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer client.Logout()

	if _, err := client.Select(label, false); err != nil {
		return nil, fmt.Errorf("select %s: %w", label, err)
	}

	uids, err := client.UidSearch(c.criteria())
	if err != nil {
		return nil, err
	}
	if len(uids) > max {
		uids = uids[len(uids)-max:]
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates, err := pdfBearing(client, uids)
	if err != nil {
		return nil, err
	}
	slog.Debug("imap search done", "label", label, "unseen", len(uids), "with_pdf", len(candidates))
	if len(candidates) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := fetchRaw(client, candidates)
	if err != nil {
		return nil, err
	}
	if c.markSeen {
		seen := new(imap.SeqSet)
		for _, m := range out {
			seen.AddNum(m.uid)
		}
		flags := []interface{}{imap.SeenFlag}
		if err := client.UidStore(seen, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			return nil, err
		}
	}

	messages := make([]internal.FetchedMailMessage, 0, len(out))
	for _, m := range out {
		messages = append(messages, m.FetchedMailMessage)
	}
	return messages, nil
}

func (c *Connector) dial() (*imapclient.Client, error) {
	var client *imapclient.Client
	var err error
	if c.secure {
		client, err = imapclient.DialTLS(c.addr, &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(c.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	if err := client.Login(c.user, c.password); err != nil {
		_ = client.Logout()
		return nil, fmt.Errorf("login %s: %w", c.user, err)
	}
	return client, nil
}

func (c *Connector) criteria() *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	if c.subject != "" {
		criteria.Header.Add("Subject", c.subject)
	}
	return criteria
}

// pdfBearing narrows uids to messages whose body structure names a PDF part.
func pdfBearing(client *imapclient.Client, uids []uint32) ([]uint32, error) {
	set := new(imap.SeqSet)
	set.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- client.UidFetch(set, []imap.FetchItem{imap.FetchUid, imap.FetchBodyStructure}, messages)
	}()

	out := make([]uint32, 0, len(uids))
	for msg := range messages {
		if msg != nil && hasPDFPart(msg.BodyStructure) {
			out = append(out, msg.Uid)
		}
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return out, nil
}

type fetched struct {
	internal.FetchedMailMessage
	uid uint32
}

func fetchRaw(client *imapclient.Client, uids []uint32) ([]fetched, error) {
	set := new(imap.SeqSet)
	set.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() { done <- client.UidFetch(set, items, messages) }()

	out := make([]fetched, 0, len(uids))
	var readErr error
	for msg := range messages {
		if msg == nil || readErr != nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			readErr = err
			continue
		}
		out = append(out, fetched{FetchedMailMessage: toMessage(msg, raw), uid: msg.Uid})
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return out, readErr
}

func toMessage(msg *imap.Message, raw []byte) internal.FetchedMailMessage {
	out := internal.FetchedMailMessage{Provider: "imap", Raw: raw}
	if msg.Envelope != nil {
		out.MessageID = msg.Envelope.MessageId
		out.Subject = msg.Envelope.Subject
		out.From = formatAddresses(msg.Envelope.From)
	}
	if out.MessageID == "" {
		out.MessageID = fmt.Sprintf("imap-%d", msg.Uid)
	}
	received := msg.InternalDate
	if received.IsZero() {
		received = time.Now()
	}
	out.ReceivedAt = received.UTC().Format(time.RFC3339)
	return out
}

func hasPDFPart(bs *imap.BodyStructure) bool {
	if bs == nil {
		return false
	}
	if strings.EqualFold(bs.MIMEType, "application") && strings.EqualFold(bs.MIMESubType, "pdf") {
		return true
	}
	for _, name := range []string{bs.DispositionParams["filename"], bs.Params["name"]} {
		if strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".pdf") {
			return true
		}
	}
	for _, part := range bs.Parts {
		if hasPDFPart(part) {
			return true
		}
	}
	return false
}

func formatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := strings.Trim(a.MailboxName+"@"+a.HostName, "@")
		if a.PersonalName != "" {
			email = fmt.Sprintf("%s <%s>", a.PersonalName, email)
		}
		parts = append(parts, email)
	}
	return strings.Join(parts, ", ")
}
