package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMimeCategory(t *testing.T) {
	assert.Equal(t, "image", MimeCategory("image/jpeg"))
	assert.Equal(t, "application", MimeCategory("application/pdf"))
	assert.Equal(t, "unknown", MimeCategory("unknown"))
	assert.Equal(t, "", MimeCategory(""))
}

func TestView(t *testing.T) {
	plain := Message{ID: "m1", Sender: "123@s.whatsapp.net", Body: "hi", Timestamp: 100}.View()
	assert.Nil(t, plain.MediaType)
	assert.Nil(t, plain.MediaPath)
	assert.Equal(t, "123@s.whatsapp.net", plain.From)

	media := Message{ID: "m2", HasMedia: true, MediaType: "video/mp4", MediaPath: "c1/m2.mp4"}.View()
	require.NotNil(t, media.MediaType)
	assert.Equal(t, "video", *media.MediaType)
	require.NotNil(t, media.MediaPath)
	assert.Equal(t, "c1/m2.mp4", *media.MediaPath)
}
