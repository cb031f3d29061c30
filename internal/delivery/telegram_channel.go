package delivery

import (
	"context"
	"fmt"

	"leadcast/internal/services/telegram"
)

// DefaultMaxUploadBytes is the Bot API upload limit.
const DefaultMaxUploadBytes = 50 << 20

const parseModeHTML = "HTML"

// TelegramSender is the subset of the Bot API client used by the bot channels.
type TelegramSender interface {
	SendVideo(ctx context.Context, token string, upload telegram.Upload) (telegram.Message, error)
	SendDocument(ctx context.Context, token string, upload telegram.Upload) (telegram.Message, error)
}

// TelegramVideoChannel uploads the artifact as an inline-playable video.
type TelegramVideoChannel struct {
	client   TelegramSender
	maxBytes int64
}

// NewTelegramVideoChannel returns the primary channel. maxBytes <= 0 uses
// DefaultMaxUploadBytes.
func NewTelegramVideoChannel(client TelegramSender, maxBytes int64) *TelegramVideoChannel {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &TelegramVideoChannel{client: client, maxBytes: maxBytes}
}

func (c *TelegramVideoChannel) Name() string { return ChannelTelegramVideo }

func (c *TelegramVideoChannel) Accepts(payload *Payload, _ *StepResult) bool {
	return c.client != nil && payload.Destination.HasBot()
}

func (c *TelegramVideoChannel) Send(ctx context.Context, payload *Payload) (Receipt, error) {
	return sendUpload(ctx, c.Name(), c.maxBytes, payload, c.client.SendVideo)
}

// TelegramDocumentChannel uploads the same bytes as a generic attachment. It
// runs only after a size or format rejection.
type TelegramDocumentChannel struct {
	client   TelegramSender
	maxBytes int64
}

// NewTelegramDocumentChannel returns the secondary channel.
func NewTelegramDocumentChannel(client TelegramSender, maxBytes int64) *TelegramDocumentChannel {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &TelegramDocumentChannel{client: client, maxBytes: maxBytes}
}

func (c *TelegramDocumentChannel) Name() string { return ChannelTelegramDocument }

func (c *TelegramDocumentChannel) Accepts(payload *Payload, previous *StepResult) bool {
	if c.client == nil || !payload.Destination.HasBot() || previous == nil {
		return false
	}
	return previous.Kind == KindPayloadTooLarge || previous.Kind == KindFormatRejected
}

func (c *TelegramDocumentChannel) Send(ctx context.Context, payload *Payload) (Receipt, error) {
	return sendUpload(ctx, c.Name(), c.maxBytes, payload, c.client.SendDocument)
}

type uploadFunc func(ctx context.Context, token string, upload telegram.Upload) (telegram.Message, error)

func sendUpload(ctx context.Context, channel string, maxBytes int64, payload *Payload, upload uploadFunc) (Receipt, error) {
	if size := payload.Size(); size > maxBytes {
		return Receipt{}, &ChannelError{
			Channel: channel,
			Kind:    KindPayloadTooLarge,
			Err:     fmt.Errorf("file is %.1f MB, limit is %.0f MB", float64(size)/(1<<20), float64(maxBytes)/(1<<20)),
		}
	}
	msg, err := upload(ctx, payload.Destination.BotToken, telegram.Upload{
		ChatID:      payload.Destination.ChatID,
		Caption:     payload.Caption,
		ParseMode:   parseModeHTML,
		FileName:    payload.FileName,
		ContentType: payload.ContentType,
		Data:        payload.Data,
	})
	if err != nil {
		return Receipt{}, channelError(channel, err)
	}
	return Receipt{Status: StatusSent, MessageID: msg.MessageID}, nil
}
