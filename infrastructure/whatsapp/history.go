package whatsapp

import (
	"sort"
	"sync"

	domainEngine "github.com/AzielCF/wa-relay/domains/engine"
)

// history keeps the most recent messages of each chat seen by the client,
// from live traffic and history sync. It backs Threads and RecentMessages.
type history struct {
	mu        sync.RWMutex
	perThread int
	threads   map[string][]domainEngine.Message
	lastSeen  map[string]int64
}

func newHistory(perThread int) *history {
	if perThread <= 0 {
		perThread = 100
	}
	return &history{
		perThread: perThread,
		threads:   make(map[string][]domainEngine.Message),
		lastSeen:  make(map[string]int64),
	}
}

// add stores msg, replacing an entry with the same id. Entries are kept in
// timestamp order and trimmed to the newest perThread.
func (h *history) add(msg domainEngine.Message) {
	if msg.ThreadID == "" || msg.ID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.threads[msg.ThreadID]
	replaced := false
	for i := range list {
		if list[i].ID == msg.ID {
			list[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, msg)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp < list[j].Timestamp })
	if over := len(list) - h.perThread; over > 0 {
		list = append([]domainEngine.Message(nil), list[over:]...)
	}
	h.threads[msg.ThreadID] = list

	if msg.Timestamp > h.lastSeen[msg.ThreadID] {
		h.lastSeen[msg.ThreadID] = msg.Timestamp
	}
}

// edit replaces the body of a known message. It reports whether it was found.
func (h *history) edit(threadID, id, body string) (domainEngine.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, m := range h.threads[threadID] {
		if m.ID == id {
			h.threads[threadID][i].Body = body
			return h.threads[threadID][i], true
		}
	}
	return domainEngine.Message{}, false
}

func (h *history) find(id string) (domainEngine.Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, list := range h.threads {
		for _, m := range list {
			if m.ID == id {
				return m, true
			}
		}
	}
	return domainEngine.Message{}, false
}

// chats lists thread ids, most recently active first.
func (h *history) chats() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.threads))
	for id := range h.threads {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if h.lastSeen[out[i]] == h.lastSeen[out[j]] {
			return out[i] < out[j]
		}
		return h.lastSeen[out[i]] > h.lastSeen[out[j]]
	})
	return out
}

// recent returns up to limit of the newest messages in threadID, oldest first.
func (h *history) recent(threadID string, limit int) []domainEngine.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.threads[threadID]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return append([]domainEngine.Message(nil), list...)
}
