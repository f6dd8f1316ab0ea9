package whatsapp

import (
	"context"
	"testing"
	"time"

	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestParseAddress(t *testing.T) {
	jid, err := parseAddress("+15551234567")
	require.NoError(t, err)
	assert.Equal(t, "15551234567@s.whatsapp.net", jid.String())

	jid, err = parseAddress("15551234567@c.us")
	require.NoError(t, err)
	assert.Equal(t, "15551234567@s.whatsapp.net", jid.String())

	jid, err = parseAddress("120363000000000000@g.us")
	require.NoError(t, err)
	assert.Equal(t, types.GroupServer, jid.Server)

	_, err = parseAddress("  ")
	assert.ErrorIs(t, err, domainEngine.ErrInvalidAddress)
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		name     string
		msg      *waE2E.Message
		typ      domainEngine.MessageType
		body     string
		hasMedia bool
	}{
		{"text", &waE2E.Message{Conversation: proto.String("hi")}, domainEngine.TypeText, "hi", false},
		{"extended", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("yo")}}, domainEngine.TypeText, "yo", false},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("pic"), Mimetype: proto.String("image/jpeg")}}, domainEngine.TypeImage, "pic", true},
		{"location", &waE2E.Message{LocationMessage: &waE2E.LocationMessage{DegreesLatitude: proto.Float64(1.5), DegreesLongitude: proto.Float64(2)}}, domainEngine.TypeLocation, "Location: 1.5,2", false},
		{"contact", &waE2E.Message{ContactMessage: &waE2E.ContactMessage{DisplayName: proto.String("Ann")}}, domainEngine.TypeContact, "Ann", false},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{Mimetype: proto.String("image/webp")}}, domainEngine.TypeSticker, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out domainEngine.Message
			describe(tc.msg, &out)
			assert.Equal(t, tc.typ, out.Type)
			assert.Equal(t, tc.body, out.Body)
			assert.Equal(t, tc.hasMedia, out.HasMedia)
		})
	}
}

func TestDescribe_Document(t *testing.T) {
	var out domainEngine.Message
	describe(&waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
		FileName: proto.String("report.pdf"),
		Mimetype: proto.String("application/pdf"),
	}}, &out)

	assert.Equal(t, domainEngine.TypeDocument, out.Type)
	assert.Equal(t, "report.pdf", out.FileName)
	assert.Equal(t, "application/pdf", out.MimeType)
	assert.NotNil(t, downloadable(&waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{}}))
	assert.Nil(t, downloadable(&waE2E.Message{Conversation: proto.String("x")}))
}

func TestFromEvent(t *testing.T) {
	chat := types.NewJID("111", types.DefaultUserServer)
	evt := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat, Sender: chat, IsFromMe: true},
			ID:            "3EB0ABC",
			Timestamp:     time.Unix(1700000000, 0),
		},
		Message: &waE2E.Message{Conversation: proto.String("hello")},
	}

	msg := fromEvent(evt)
	assert.Equal(t, "3EB0ABC", msg.ID)
	assert.Equal(t, "111@s.whatsapp.net", msg.ThreadID)
	assert.Equal(t, "111@s.whatsapp.net", msg.To)
	assert.True(t, msg.FromMe)
	assert.Equal(t, int64(1700000000), msg.Timestamp)
	assert.Equal(t, "hello", msg.Body)
	_, ok := msg.Handle.(*messageHandle)
	assert.True(t, ok)
}

func TestBodies(t *testing.T) {
	assert.Equal(t, "Main St", locationBody("Main St", 1, 2))
	assert.Equal(t, "Contact: 555", contactBody("", "555"))
	assert.Equal(t, "Bob", contactBody("Bob", "555"))
	assert.Equal(t, "Poll: Lunch? (3 options)", pollBody("Lunch?", 3))
	assert.Contains(t, vcard("", "+555"), "waid=555:+555")
}

func TestEngine_CloseIsIdempotentAndClosesEvents(t *testing.T) {
	e := newEngine("c1", Options{StoragesPath: t.TempDir(), EventBuffer: 1})
	e.emit(domainEngine.Event{Kind: domainEngine.KindReady})

	require.NoError(t, e.Close(context.Background()))
	require.NoError(t, e.Close(context.Background()))
	e.emit(domainEngine.Event{Kind: domainEngine.KindReady})

	evt, ok := <-e.Events()
	require.True(t, ok)
	assert.Equal(t, domainEngine.KindReady, evt.Kind)
	_, ok = <-e.Events()
	assert.False(t, ok)
}

func TestEngine_NotReadyBeforeStart(t *testing.T) {
	e := newEngine("c1", Options{StoragesPath: t.TempDir(), EventBuffer: 1})
	_, err := e.SendText(context.Background(), "123", "hi", domainEngine.TextOptions{})
	assert.ErrorIs(t, err, domainEngine.ErrNotReady)
}

func TestRenderQR(t *testing.T) {
	png, err := RenderQR("2@abc,def,ghi")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}
