package whatsapp

import (
	"time"

	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// RenderQR encodes a pairing code as a 256px PNG.
func RenderQR(code string) ([]byte, error) {
	return qrcode.Encode(code, qrcode.Medium, 256)
}

func (e *Engine) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	log := logrus.WithField("client_id", e.sessionID)
	for item := range qrChan {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			png, err := RenderQR(item.Code)
			if err != nil {
				log.WithError(err).Warn("[WHATSAPP] Failed to render QR code")
			}
			e.emit(domainEngine.Event{Kind: domainEngine.KindQR, QRCode: item.Code, QRImage: png})
		case "success":
			log.Info("[WHATSAPP] Pairing successful")
		case "timeout":
			log.Warn("[WHATSAPP] QR code timed out")
			e.emit(domainEngine.Event{Kind: domainEngine.KindDisconnected, Reason: "qr timeout"})
		default:
			if item.Error != nil {
				log.WithError(item.Error).Warn("[WHATSAPP] Pairing failed")
				e.emit(domainEngine.Event{Kind: domainEngine.KindAuthFailure, Reason: item.Error.Error()})
			}
		}
	}
}

// handleEvent maps whatsmeow events onto engine events.
func (e *Engine) handleEvent(raw interface{}) {
	switch v := raw.(type) {
	case *events.PairSuccess:
		e.emit(domainEngine.Event{Kind: domainEngine.KindAuthenticated, Data: map[string]any{"jid": v.ID.String()}})

	case *events.Connected:
		e.emit(domainEngine.Event{Kind: domainEngine.KindReady})

	case *events.LoggedOut:
		e.emit(domainEngine.Event{Kind: domainEngine.KindDisconnected, Reason: "logged out: " + v.Reason.String()})

	case *events.Disconnected:
		e.emit(domainEngine.Event{Kind: domainEngine.KindDisconnected, Reason: "connection lost"})

	case *events.StreamReplaced:
		e.emit(domainEngine.Event{Kind: domainEngine.KindDisconnected, Reason: "stream replaced"})

	case *events.ConnectFailure:
		e.emit(domainEngine.Event{Kind: domainEngine.KindAuthFailure, Reason: v.Reason.String()})

	case *events.TemporaryBan:
		e.emit(domainEngine.Event{Kind: domainEngine.KindAuthFailure, Reason: v.String()})

	case *events.Message:
		e.handleMessage(v)

	case *events.Receipt:
		e.handleReceipt(v)

	case *events.HistorySync:
		e.handleHistorySync(v)

	case *events.JoinedGroup:
		e.emit(domainEngine.Event{Kind: domainEngine.KindGroupJoin, Data: map[string]any{
			"chatId": v.GroupInfo.JID.String(),
			"name":   v.GroupInfo.GroupName.Name,
			"reason": v.Reason,
		}})

	case *events.GroupInfo:
		e.handleGroupInfo(v)
	}
}

func (e *Engine) handleMessage(evt *events.Message) {
	if evt.Info.Chat.String() == types.StatusBroadcastJID.String() {
		return
	}

	if pm := evt.Message.GetProtocolMessage(); pm != nil {
		switch pm.GetType() {
		case waE2E.ProtocolMessage_REVOKE:
			e.emit(domainEngine.Event{Kind: domainEngine.KindRevoke, Data: map[string]any{
				"id":        pm.GetKey().GetID(),
				"chatId":    evt.Info.Chat.ToNonAD().String(),
				"from":      evt.Info.Sender.ToNonAD().String(),
				"timestamp": evt.Info.Timestamp.Unix(),
			}})
		case waE2E.ProtocolMessage_MESSAGE_EDIT:
			e.handleEdit(evt, pm)
		}
		return
	}

	if r := evt.Message.GetReactionMessage(); r != nil {
		e.emit(domainEngine.Event{Kind: domainEngine.KindReaction, Data: map[string]any{
			"id":        evt.Info.ID,
			"reaction":  r.GetText(),
			"msgId":     r.GetKey().GetID(),
			"chatId":    evt.Info.Chat.ToNonAD().String(),
			"senderId":  evt.Info.Sender.ToNonAD().String(),
			"timestamp": evt.Info.Timestamp.Unix(),
		}})
		return
	}

	msg := fromEvent(evt)
	e.history.add(msg)

	kind := domainEngine.KindMessage
	if msg.FromMe {
		kind = domainEngine.KindMessageCreate
	}
	e.emit(domainEngine.Event{Kind: kind, Message: &msg})
}

func (e *Engine) handleEdit(evt *events.Message, pm *waE2E.ProtocolMessage) {
	original := pm.GetKey().GetID()
	if original == "" {
		return
	}
	var edited domainEngine.Message
	describe(pm.GetEditedMessage(), &edited)

	threadID := evt.Info.Chat.ToNonAD().String()
	msg, ok := e.history.edit(threadID, original, edited.Body)
	if !ok {
		msg = domainEngine.Message{
			ID:       original,
			ThreadID: threadID,
			Sender:   evt.Info.Sender.ToNonAD().String(),
			FromMe:   evt.Info.IsFromMe,
			Body:     edited.Body,
			Type:     edited.Type,
		}
	}
	msg.Timestamp = evt.Info.Timestamp.Unix()
	e.emit(domainEngine.Event{Kind: domainEngine.KindMessageEdit, Message: &msg})
}

func ackLevel(t types.ReceiptType) int {
	switch t {
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf:
		return 3
	case types.ReceiptTypePlayed, types.ReceiptTypePlayedSelf:
		return 4
	case types.ReceiptTypeDelivered, types.ReceiptTypeSender:
		return 2
	default:
		return 1
	}
}

func (e *Engine) handleReceipt(evt *events.Receipt) {
	ids := make([]string, 0, len(evt.MessageIDs))
	for _, id := range evt.MessageIDs {
		ids = append(ids, string(id))
	}
	e.emit(domainEngine.Event{Kind: domainEngine.KindAck, Data: map[string]any{
		"ids":       ids,
		"chatId":    evt.Chat.ToNonAD().String(),
		"from":      evt.Sender.ToNonAD().String(),
		"ack":       ackLevel(evt.Type),
		"timestamp": evt.Timestamp.Unix(),
	}})
}

func jidStrings(list []types.JID) []string {
	out := make([]string, 0, len(list))
	for _, j := range list {
		out = append(out, j.ToNonAD().String())
	}
	return out
}

func (e *Engine) handleGroupInfo(evt *events.GroupInfo) {
	chatID := evt.JID.String()
	ts := evt.Timestamp.Unix()
	if len(evt.Join) > 0 {
		e.emit(domainEngine.Event{Kind: domainEngine.KindGroupJoin, Data: map[string]any{
			"chatId": chatID, "participants": jidStrings(evt.Join), "timestamp": ts,
		}})
	}
	if len(evt.Leave) > 0 {
		e.emit(domainEngine.Event{Kind: domainEngine.KindGroupLeave, Data: map[string]any{
			"chatId": chatID, "participants": jidStrings(evt.Leave), "timestamp": ts,
		}})
	}
	if len(evt.Join) > 0 || len(evt.Leave) > 0 {
		return
	}

	data := map[string]any{"chatId": chatID, "timestamp": ts}
	if evt.Name != nil {
		data["name"] = evt.Name.Name
	}
	if evt.Topic != nil {
		data["topic"] = evt.Topic.Topic
	}
	if len(evt.Promote) > 0 {
		data["promoted"] = jidStrings(evt.Promote)
	}
	if len(evt.Demote) > 0 {
		data["demoted"] = jidStrings(evt.Demote)
	}
	e.emit(domainEngine.Event{Kind: domainEngine.KindGroupUpdate, Data: data})
}

// handleHistorySync seeds the recent-message buffer. Synced messages are not
// reported as events.
func (e *Engine) handleHistorySync(evt *events.HistorySync) {
	client, err := e.currentClient()
	if err != nil || evt.Data == nil {
		return
	}
	started := time.Now()
	count := 0
	for _, conv := range evt.Data.GetConversations() {
		chatJID, err := types.ParseJID(conv.GetID())
		if err != nil {
			continue
		}
		for _, hm := range conv.GetMessages() {
			parsed, err := client.ParseWebMessage(chatJID, hm.GetMessage())
			if err != nil || parsed.Message == nil {
				continue
			}
			if parsed.Message.GetProtocolMessage() != nil || parsed.Message.GetReactionMessage() != nil {
				continue
			}
			e.history.add(fromEvent(parsed))
			count++
		}
	}
	logrus.WithField("client_id", e.sessionID).Debugf("[WHATSAPP] History sync buffered %d messages in %s", count, time.Since(started))
}
