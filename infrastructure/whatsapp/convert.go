package whatsapp

import (
	"fmt"
	"strings"

	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// messageHandle is the engine private state kept on domain messages.
type messageHandle struct {
	info types.MessageInfo
	msg  *waE2E.Message
}

// parseAddress accepts a bare number, a JID, or the "@c.us" form used by
// other WhatsApp clients.
func parseAddress(to string) (types.JID, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return types.JID{}, domainEngine.ErrInvalidAddress
	}
	if strings.HasSuffix(to, "@c.us") {
		to = strings.TrimSuffix(to, "@c.us") + "@" + types.DefaultUserServer
	}
	if !strings.Contains(to, "@") {
		to = strings.TrimPrefix(to, "+")
		return types.NewJID(to, types.DefaultUserServer), nil
	}
	jid, err := types.ParseJID(to)
	if err != nil {
		return types.JID{}, fmt.Errorf("%w: %v", domainEngine.ErrInvalidAddress, err)
	}
	return jid, nil
}

// downloadable returns the media part of msg, if any.
func downloadable(msg *waE2E.Message) whatsmeow.DownloadableMessage {
	switch {
	case msg == nil:
		return nil
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage()
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage()
	}
	return nil
}

// describe classifies msg and extracts its text body and media attributes.
func describe(msg *waE2E.Message, out *domainEngine.Message) {
	if msg == nil {
		return
	}
	switch {
	case msg.GetConversation() != "":
		out.Type = domainEngine.TypeText
		out.Body = msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		out.Type = domainEngine.TypeText
		out.Body = msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage() != nil:
		m := msg.GetImageMessage()
		out.Type, out.Body, out.MimeType = domainEngine.TypeImage, m.GetCaption(), m.GetMimetype()
		out.HasMedia = true
	case msg.GetVideoMessage() != nil:
		m := msg.GetVideoMessage()
		out.Type, out.Body, out.MimeType = domainEngine.TypeVideo, m.GetCaption(), m.GetMimetype()
		out.HasMedia = true
	case msg.GetAudioMessage() != nil:
		m := msg.GetAudioMessage()
		out.Type, out.MimeType = domainEngine.TypeAudio, m.GetMimetype()
		out.HasMedia = true
	case msg.GetDocumentMessage() != nil:
		m := msg.GetDocumentMessage()
		out.Type, out.Body, out.MimeType, out.FileName = domainEngine.TypeDocument, m.GetCaption(), m.GetMimetype(), m.GetFileName()
		out.HasMedia = true
	case msg.GetStickerMessage() != nil:
		m := msg.GetStickerMessage()
		out.Type, out.MimeType = domainEngine.TypeSticker, m.GetMimetype()
		out.HasMedia = true
	case msg.GetLocationMessage() != nil:
		m := msg.GetLocationMessage()
		out.Type = domainEngine.TypeLocation
		out.Body = locationBody(m.GetAddress(), m.GetDegreesLatitude(), m.GetDegreesLongitude())
	case msg.GetLiveLocationMessage() != nil:
		m := msg.GetLiveLocationMessage()
		out.Type = domainEngine.TypeLocation
		out.Body = locationBody("", m.GetDegreesLatitude(), m.GetDegreesLongitude())
	case msg.GetContactMessage() != nil:
		out.Type = domainEngine.TypeContact
		out.Body = msg.GetContactMessage().GetDisplayName()
	case msg.GetPollCreationMessage() != nil:
		m := msg.GetPollCreationMessage()
		out.Type = domainEngine.TypePoll
		out.Body = pollBody(m.GetName(), len(m.GetOptions()))
	case msg.GetPollCreationMessageV3() != nil:
		m := msg.GetPollCreationMessageV3()
		out.Type = domainEngine.TypePoll
		out.Body = pollBody(m.GetName(), len(m.GetOptions()))
	}
}

func locationBody(address string, lat, lng float64) string {
	if address != "" {
		return address
	}
	return fmt.Sprintf("Location: %v,%v", lat, lng)
}

func contactBody(displayName, number string) string {
	if displayName != "" {
		return displayName
	}
	return "Contact: " + number
}

func pollBody(question string, options int) string {
	return fmt.Sprintf("Poll: %s (%d options)", question, options)
}

// fromEvent converts an inbound message event.
func fromEvent(evt *events.Message) domainEngine.Message {
	out := domainEngine.Message{
		ID:        evt.Info.ID,
		ThreadID:  evt.Info.Chat.ToNonAD().String(),
		Sender:    evt.Info.Sender.ToNonAD().String(),
		Timestamp: evt.Info.Timestamp.Unix(),
		FromMe:    evt.Info.IsFromMe,
		Handle:    &messageHandle{info: evt.Info, msg: evt.Message},
	}
	if evt.Info.IsFromMe {
		out.To = out.ThreadID
	}
	describe(evt.Message, &out)
	return out
}

func vcard(displayName, number string) string {
	number = strings.TrimPrefix(strings.TrimSpace(number), "+")
	if displayName == "" {
		displayName = number
	}
	return fmt.Sprintf("BEGIN:VCARD\nVERSION:3.0\nN:;%s;;;\nFN:%s\nTEL;type=CELL;type=VOICE;waid=%s:+%s\nEND:VCARD",
		displayName, displayName, number, number)
}
