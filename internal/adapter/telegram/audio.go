package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	// voiceMimeType is what Telegram voice notes are encoded as. Several
	// notes joined together form a chained Ogg stream.
	voiceMimeType = "audio/ogg"

	inboxBuffer     = 64
	maxVoiceBytes   = 20 << 20
	downloadTimeout = 30 * time.Second
)

// sender is the part of the Bot API used to deliver messages.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Chats hands out the per-chat capture device and audio output. Sessions are
// keyed by chat ID.
type Chats struct {
	api sender
	log *zap.Logger

	mu      sync.Mutex
	inboxes map[int64]*voiceInbox
}

func NewChats(api sender, logger *zap.Logger) *Chats {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chats{
		api:     api,
		log:     logger.Named("chats"),
		inboxes: make(map[int64]*voiceInbox),
	}
}

// Devices builds the voice inbox and chat output for the chat identified
// by userID.
func (c *Chats) Devices(userID string) (domain.CaptureDevice, domain.AudioOutput) {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		c.log.Error("invalid chat id", zap.String("user_id", userID), zap.Error(err))
	}

	inbox := &voiceInbox{}

	c.mu.Lock()
	c.inboxes[chatID] = inbox
	c.mu.Unlock()

	return inbox, &chatOutput{api: c.api, chatID: chatID, log: c.log}
}

// inbox returns the voice inbox of a chat.
func (c *Chats) inbox(chatID int64) (*voiceInbox, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inbox, ok := c.inboxes[chatID]
	return inbox, ok
}

// voiceInbox is a capture device fed by voice notes. While a stream is
// open every delivered note becomes one chunk.
type voiceInbox struct {
	mu      sync.Mutex
	current *inboxStream
}

func (v *voiceInbox) Open(context.Context) (domain.CaptureStream, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != nil {
		return nil, fmt.Errorf("%w: voice inbox is busy", domain.ErrDeviceUnavailable)
	}
	s := &inboxStream{inbox: v, chunks: make(chan []byte, inboxBuffer)}
	v.current = s
	return s, nil
}

// Deliver appends a voice note to the open stream and returns how many notes
// it holds.
func (v *voiceInbox) Deliver(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.current
	if s == nil {
		return 0, domain.ErrNotCapturing
	}
	select {
	case s.chunks <- data:
		s.count++
		return s.count, nil
	default:
		return s.count, fmt.Errorf("voice inbox full")
	}
}

type inboxStream struct {
	inbox  *voiceInbox
	chunks chan []byte
	count  int
	closed bool
}

func (s *inboxStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *inboxStream) MimeType() string {
	return voiceMimeType
}

func (s *inboxStream) Close() error {
	s.inbox.mu.Lock()
	defer s.inbox.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.chunks)
	if s.inbox.current == s {
		s.inbox.current = nil
	}
	return nil
}

// chatOutput plays audio by sending it to the chat. Telegram clients play
// the clip themselves, so playback ends as soon as it is delivered.
type chatOutput struct {
	api    sender
	chatID int64
	log    *zap.Logger
}

func (o *chatOutput) Play(_ context.Context, src domain.AudioSource) (domain.Playback, error) {
	var msg tgbotapi.Chattable
	switch {
	case src.URL != "":
		msg = tgbotapi.NewAudio(o.chatID, tgbotapi.FileURL(src.URL))
	case len(src.Data) > 0:
		msg = tgbotapi.NewVoice(o.chatID, tgbotapi.FileBytes{Name: "recitation.ogg", Bytes: src.Data})
	default:
		return nil, fmt.Errorf("empty audio source")
	}

	if _, err := o.api.Send(msg); err != nil {
		return nil, fmt.Errorf("send audio: %w", err)
	}
	return delivered{}, nil
}

type delivered struct{}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (delivered) Done() <-chan struct{} { return closedCh }

func (delivered) Stop() error { return nil }

// downloadFile downloads a file from Telegram
func downloadFile(ctx context.Context, client *http.Client, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVoiceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxVoiceBytes {
		return nil, fmt.Errorf("voice note exceeds %d bytes", maxVoiceBytes)
	}

	return data, nil
}

// fetchVoice downloads a voice message by file ID
func (b *Bot) fetchVoice(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file info: %w", err)
	}

	data, err := downloadFile(ctx, b.http, file.Link(b.api.Token))
	if err != nil {
		return nil, err
	}
	return data, nil
}
