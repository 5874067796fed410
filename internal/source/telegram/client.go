// Package telegram adapts the gotd MTProto client to the scan.Source
// contract: broadcast-channel enumeration, history pagination, and
// document metadata extraction.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/nkhosla/paperfind/internal/scan"
)

// ErrNotAuthorized means the session file exists but holds no
// authorized user. Logging in happens out of band with a separate
// gotd-based tool; a scan run never prompts.
var ErrNotAuthorized = errors.New("telegram session is not authorized")

// ErrSessionLocked marks transient contention on the local session
// store, e.g. a second instance holding the file.
var ErrSessionLocked = errors.New("telegram session storage is locked")

const (
	dialogPageSize  = 100
	historyPageSize = 100
	maxDialogPages  = 50
)

// Config identifies the API credentials and session location.
type Config struct {
	APIID       int
	APIHash     string
	SessionFile string
}

// Client implements scan.Source on top of gotd.
type Client struct {
	cfg    Config
	logger *zap.Logger

	tg     *telegram.Client
	api    *tg.Client
	stop   context.CancelFunc
	runErr chan error
}

// New builds an unconnected Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIID == 0 || cfg.APIHash == "" {
		return nil, fmt.Errorf("telegram api_id and api_hash are required")
	}
	if cfg.SessionFile == "" {
		return nil, fmt.Errorf("telegram session file is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, logger: logger}, nil
}

// Connect starts the MTProto client in the background and waits until
// the session is usable. A locked session store surfaces as a
// transient error (see IsTransient); a missing authorization is fatal.
func (c *Client) Connect(ctx context.Context) error {
	c.tg = telegram.NewClient(c.cfg.APIID, c.cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.cfg.SessionFile},
	})

	runCtx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	c.runErr = make(chan error, 1)
	ready := make(chan struct{})

	go func() {
		c.runErr <- c.tg.Run(runCtx, func(ctx context.Context) error {
			status, err := c.tg.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("auth status: %w", err)
			}
			if !status.Authorized {
				return ErrNotAuthorized
			}
			c.api = c.tg.API()
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		return nil
	case err := <-c.runErr:
		cancel()
		c.stop = nil
		if err == nil {
			err = errors.New("client stopped before becoming ready")
		}
		return classify(err)
	case <-ctx.Done():
		cancel()
		c.stop = nil
		return ctx.Err()
	}
}

// Close stops the background client.
func (c *Client) Close() error {
	if c.stop == nil {
		return nil
	}
	c.stop()
	err := <-c.runErr
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Channels enumerates the broadcast channels in the account's dialog
// list, paginating until the list is exhausted.
func (c *Client) Channels(ctx context.Context) ([]scan.Channel, error) {
	var (
		out        []scan.Channel
		seen       = make(map[int64]struct{})
		offsetDate int
		offsetID   int
	)

	for page := 0; page < maxDialogPages; page++ {
		res, err := c.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
			OffsetDate: offsetDate,
			OffsetID:   offsetID,
			OffsetPeer: &tg.InputPeerEmpty{},
			Limit:      dialogPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("get dialogs: %w", err)
		}

		chats, messages, last := unpackDialogs(res)
		for _, chat := range chats {
			ch, ok := chat.(*tg.Channel)
			if !ok || !ch.Broadcast || ch.Left {
				continue
			}
			if _, dup := seen[ch.ID]; dup {
				continue
			}
			seen[ch.ID] = struct{}{}
			out = append(out, scan.Channel{
				ID:         ch.ID,
				AccessHash: ch.AccessHash,
				Title:      ch.Title,
				Username:   ch.Username,
			})
		}

		if last || len(messages) == 0 {
			break
		}
		nextDate, nextID, ok := lastMessageOffset(messages)
		if !ok || (nextDate == offsetDate && nextID == offsetID) {
			break
		}
		offsetDate, offsetID = nextDate, nextID
	}

	c.logger.Debug("channels enumerated", zap.Int("count", len(out)))
	return out, nil
}

// Messages pages through a channel's history, newest first. limit <= 0
// means unbounded (until the history is exhausted).
func (c *Client) Messages(ctx context.Context, ch scan.Channel, limit int) ([]scan.Message, error) {
	peer := &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}

	var (
		out      []scan.Message
		offsetID int
	)
	for {
		page := historyPageSize
		if limit > 0 && limit-len(out) < page {
			page = limit - len(out)
		}
		if page <= 0 {
			break
		}

		res, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    page,
		})
		if err != nil {
			return nil, fmt.Errorf("get history for %s: %w", ch.Title, err)
		}

		raw := unpackMessages(res)
		if len(raw) == 0 {
			break
		}
		for _, m := range raw {
			msg, ok := m.(*tg.Message)
			if !ok {
				continue
			}
			out = append(out, convertMessage(msg))
			offsetID = msg.ID
		}
		if len(raw) < page {
			break
		}
	}
	return out, nil
}

func convertMessage(msg *tg.Message) scan.Message {
	converted := scan.Message{
		ID:      msg.ID,
		Date:    time.Unix(int64(msg.Date), 0).UTC(),
		Caption: msg.Message,
	}
	media, ok := msg.Media.(*tg.MessageMediaDocument)
	if !ok {
		return converted
	}
	docClass, ok := media.GetDocument()
	if !ok {
		return converted
	}
	doc, ok := docClass.AsNotEmpty()
	if !ok {
		return converted
	}

	attached := &scan.Document{Size: doc.Size}
	for _, attr := range doc.Attributes {
		if fn, ok := attr.(*tg.DocumentAttributeFilename); ok {
			attached.Filename = fn.FileName
			break
		}
	}
	converted.Document = attached
	return converted
}

func unpackDialogs(res tg.MessagesDialogsClass) (chats []tg.ChatClass, messages []tg.MessageClass, last bool) {
	switch d := res.(type) {
	case *tg.MessagesDialogs:
		return d.Chats, d.Messages, true
	case *tg.MessagesDialogsSlice:
		return d.Chats, d.Messages, len(d.Dialogs) < dialogPageSize
	default:
		return nil, nil, true
	}
}

func unpackMessages(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch m := res.(type) {
	case *tg.MessagesMessages:
		return m.Messages
	case *tg.MessagesMessagesSlice:
		return m.Messages
	case *tg.MessagesChannelMessages:
		return m.Messages
	default:
		return nil
	}
}

func lastMessageOffset(messages []tg.MessageClass) (date, id int, ok bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		switch m := messages[i].(type) {
		case *tg.Message:
			return m.Date, m.ID, true
		case *tg.MessageService:
			return m.Date, m.ID, true
		}
	}
	return 0, 0, false
}

// classify maps adapter errors into the pipeline's taxonomy.
func classify(err error) error {
	if IsTransient(err) {
		return fmt.Errorf("%w: %v", ErrSessionLocked, err)
	}
	return err
}

// IsTransient reports whether the error is the transient
// resource-contention class worth retrying with backoff.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionLocked) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "resource temporarily unavailable") ||
		strings.Contains(msg, "file already locked")
}

var _ scan.Source = (*Client)(nil)
