package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

// send delivers msg and records it in the recent-message buffer.
func (e *Engine) send(ctx context.Context, to string, msg *waE2E.Message, sent domainEngine.Message) (domainEngine.SendResult, error) {
	client, err := e.readyClient()
	if err != nil {
		return domainEngine.SendResult{}, err
	}
	jid, err := parseAddress(to)
	if err != nil {
		return domainEngine.SendResult{}, err
	}

	resp, err := client.SendMessage(ctx, jid, msg)
	if err != nil {
		return domainEngine.SendResult{}, err
	}

	sent.ID = resp.ID
	sent.ThreadID = jid.ToNonAD().String()
	sent.To = sent.ThreadID
	sent.FromMe = true
	sent.Timestamp = resp.Timestamp.Unix()
	if client.Store.ID != nil {
		sent.Sender = client.Store.ID.ToNonAD().String()
	}
	sent.Handle = &messageHandle{
		info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: jid, Sender: client.Store.GetJID(), IsFromMe: true},
			ID:            resp.ID,
			Timestamp:     resp.Timestamp,
		},
		msg: msg,
	}
	e.history.add(sent)

	return domainEngine.SendResult{ID: resp.ID, ChatID: sent.ThreadID, Timestamp: resp.Timestamp}, nil
}

// contextInfo builds the mention and quote metadata, or nil when there is none.
func (e *Engine) contextInfo(chat types.JID, opts domainEngine.TextOptions) *waE2E.ContextInfo {
	if len(opts.Mentions) == 0 && opts.QuotedMessageID == "" {
		return nil
	}
	info := &waE2E.ContextInfo{}
	for _, m := range opts.Mentions {
		if jid, err := parseAddress(m); err == nil {
			info.MentionedJID = append(info.MentionedJID, jid.String())
		}
	}
	if opts.QuotedMessageID != "" {
		info.StanzaID = proto.String(opts.QuotedMessageID)
		info.Participant = proto.String(chat.String())
		info.QuotedMessage = &waE2E.Message{Conversation: proto.String("")}
		if quoted, ok := e.history.find(opts.QuotedMessageID); ok {
			if h, ok := quoted.Handle.(*messageHandle); ok {
				info.Participant = proto.String(h.info.Sender.ToNonAD().String())
				if h.msg != nil {
					info.QuotedMessage = h.msg
				}
			}
		}
	}
	return info
}

func (e *Engine) SendText(ctx context.Context, to, text string, opts domainEngine.TextOptions) (domainEngine.SendResult, error) {
	jid, err := parseAddress(to)
	if err != nil {
		return domainEngine.SendResult{}, err
	}

	msg := &waE2E.Message{}
	if ci := e.contextInfo(jid, opts); ci != nil {
		msg.ExtendedTextMessage = &waE2E.ExtendedTextMessage{Text: proto.String(text), ContextInfo: ci}
	} else {
		msg.Conversation = proto.String(text)
	}
	return e.send(ctx, to, msg, domainEngine.Message{Body: text, Type: domainEngine.TypeText})
}

func mediaKind(media domainEngine.OutgoingMedia) whatsmeow.MediaType {
	switch {
	case media.Sticker, strings.HasPrefix(media.MimeType, "image/"):
		return whatsmeow.MediaImage
	case strings.HasPrefix(media.MimeType, "video/"):
		return whatsmeow.MediaVideo
	case strings.HasPrefix(media.MimeType, "audio/"):
		return whatsmeow.MediaAudio
	default:
		return whatsmeow.MediaDocument
	}
}

func (e *Engine) SendMedia(ctx context.Context, to string, media domainEngine.OutgoingMedia) (domainEngine.SendResult, error) {
	client, err := e.readyClient()
	if err != nil {
		return domainEngine.SendResult{}, err
	}
	if media.Sticker && media.MimeType == "" {
		media.MimeType = "image/webp"
	}

	mType := mediaKind(media)
	uploaded, err := client.Upload(ctx, media.Data, mType)
	if err != nil {
		return domainEngine.SendResult{}, fmt.Errorf("failed to upload media: %w", err)
	}

	sent := domainEngine.Message{Body: media.Caption, HasMedia: true, MimeType: media.MimeType, FileName: media.FileName}
	msg := &waE2E.Message{}
	switch {
	case media.Sticker:
		sent.Type = domainEngine.TypeSticker
		msg.StickerMessage = &waE2E.StickerMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}
	case mType == whatsmeow.MediaImage:
		sent.Type = domainEngine.TypeImage
		msg.ImageMessage = &waE2E.ImageMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Caption:       proto.String(media.Caption),
		}
	case mType == whatsmeow.MediaVideo:
		sent.Type = domainEngine.TypeVideo
		msg.VideoMessage = &waE2E.VideoMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Caption:       proto.String(media.Caption),
		}
	case mType == whatsmeow.MediaAudio:
		sent.Type = domainEngine.TypeAudio
		msg.AudioMessage = &waE2E.AudioMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}
	default:
		sent.Type = domainEngine.TypeDocument
		msg.DocumentMessage = &waE2E.DocumentMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Caption:       proto.String(media.Caption),
			FileName:      proto.String(media.FileName),
		}
	}
	return e.send(ctx, to, msg, sent)
}

func (e *Engine) SendLocation(ctx context.Context, to string, latitude, longitude float64, address string) (domainEngine.SendResult, error) {
	loc := &waE2E.LocationMessage{
		DegreesLatitude:  proto.Float64(latitude),
		DegreesLongitude: proto.Float64(longitude),
	}
	if address != "" {
		loc.Address = proto.String(address)
	}
	sent := domainEngine.Message{Type: domainEngine.TypeLocation, Body: locationBody(address, latitude, longitude)}
	return e.send(ctx, to, &waE2E.Message{LocationMessage: loc}, sent)
}

func (e *Engine) SendContact(ctx context.Context, to, contactNumber, displayName string) (domainEngine.SendResult, error) {
	name := displayName
	if name == "" {
		name = contactNumber
	}
	msg := &waE2E.Message{ContactMessage: &waE2E.ContactMessage{
		DisplayName: proto.String(name),
		Vcard:       proto.String(vcard(displayName, contactNumber)),
	}}
	sent := domainEngine.Message{Type: domainEngine.TypeContact, Body: contactBody(displayName, contactNumber)}
	return e.send(ctx, to, msg, sent)
}

func (e *Engine) SendPoll(ctx context.Context, to, question string, options []string, multipleAnswers bool) (domainEngine.SendResult, error) {
	client, err := e.readyClient()
	if err != nil {
		return domainEngine.SendResult{}, err
	}
	selectable := 1
	if multipleAnswers {
		selectable = 0
	}
	msg := client.BuildPollCreation(question, options, selectable)
	sent := domainEngine.Message{Type: domainEngine.TypePoll, Body: pollBody(question, len(options))}
	return e.send(ctx, to, msg, sent)
}

func (e *Engine) React(ctx context.Context, target domainEngine.Message, emoji string) error {
	client, err := e.readyClient()
	if err != nil {
		return err
	}
	h, ok := target.Handle.(*messageHandle)
	if !ok {
		return fmt.Errorf("message %s was not produced by this engine", target.ID)
	}
	msg := client.BuildReaction(h.info.Chat, h.info.Sender, h.info.ID, emoji)
	_, err = client.SendMessage(ctx, h.info.Chat, msg)
	return err
}

func (e *Engine) SetStatusMessage(ctx context.Context, text string) error {
	client, err := e.readyClient()
	if err != nil {
		return err
	}
	return client.SetStatusMessage(ctx, text)
}

func (e *Engine) Threads(_ context.Context) ([]string, error) {
	return e.history.chats(), nil
}

func (e *Engine) RecentMessages(_ context.Context, threadID string, limit int) ([]domainEngine.Message, error) {
	return e.history.recent(threadID, limit), nil
}

// Download fetches and decrypts the media of msg.
func (e *Engine) Download(ctx context.Context, msg domainEngine.Message) (*domainEngine.Media, error) {
	h, ok := msg.Handle.(*messageHandle)
	if !ok || !msg.HasMedia {
		return nil, domainEngine.ErrNoMedia
	}
	media := downloadable(h.msg)
	if media == nil {
		return nil, domainEngine.ErrNoMedia
	}
	client, err := e.readyClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	data, err := client.Download(ctx, media)
	if err != nil {
		return nil, fmt.Errorf("download media %s: %w", msg.ID, err)
	}
	return &domainEngine.Media{Data: data, MimeType: msg.MimeType, FileName: msg.FileName}, nil
}
