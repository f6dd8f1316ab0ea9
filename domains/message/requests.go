package message

type SendTextRequest struct {
	To              string   `json:"to"`
	Message         string   `json:"message"`
	Mentions        []string `json:"mentions,omitempty"`
	QuotedMessageID string   `json:"quotedMessageId,omitempty"`
}

// SendMediaRequest carries base64 encoded file data.
type SendMediaRequest struct {
	To       string `json:"to"`
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
	Data     string `json:"data"`
	Caption  string `json:"caption,omitempty"`
}

type SendStickerRequest struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

type SendLocationRequest struct {
	To        string   `json:"to"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address,omitempty"`
}

type SendContactRequest struct {
	To            string `json:"to"`
	ContactNumber string `json:"contactNumber"`
	DisplayName   string `json:"displayName,omitempty"`
}

type SendPollRequest struct {
	To                   string   `json:"to"`
	Question             string   `json:"question"`
	Options              []string `json:"options"`
	AllowMultipleAnswers bool     `json:"allowMultipleAnswers"`
}

type ReactRequest struct {
	Emoji string `json:"emoji"`
}

type SearchRequest struct {
	Query  string
	ChatID string
	Limit  int
}

type SendResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

type SearchResult struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}
