package eventbus

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(sub *Subscription) []Envelope {
	var out []Envelope
	for {
		select {
		case env, ok := <-sub.C():
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func snapshot(filter string) Envelope {
	if filter != "" {
		return Envelope{Event: "status", ClientID: filter, Payload: map[string]any{"status": "ready"}}
	}
	return Envelope{Event: "clients", Payload: map[string]any{"clients": []string{"a", "b"}}}
}

func TestSubscribe_SendsSnapshotFirst(t *testing.T) {
	bus := New(8, snapshot)

	filtered := bus.Subscribe("a")
	all := bus.Subscribe("")
	bus.Publish("message", "a", "hi")

	gotFiltered := drain(filtered)
	require.Len(t, gotFiltered, 2)
	assert.Equal(t, "status", gotFiltered[0].Event)
	assert.Equal(t, "message", gotFiltered[1].Event)

	gotAll := drain(all)
	require.Len(t, gotAll, 2)
	assert.Equal(t, "clients", gotAll[0].Event)
}

func TestPublish_FilterIsolation(t *testing.T) {
	bus := New(8, nil)
	subA := bus.Subscribe("a")

	bus.Publish("message", "b", "for b")
	bus.Publish("message", "a", "for a")

	got := drain(subA)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ClientID)
	assert.Equal(t, "for a", got[0].Payload)
}

func TestPublish_PerSessionOrderForUnfilteredSubscriber(t *testing.T) {
	bus := New(64, nil)
	sub := bus.Subscribe("")

	for i := 0; i < 10; i++ {
		bus.Publish("message", "a", i)
		bus.Publish("message", "b", i)
	}

	perSession := map[string][]int{}
	for _, env := range drain(sub) {
		perSession[env.ClientID] = append(perSession[env.ClientID], env.Payload.(int))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, perSession["a"])
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, perSession["b"])
}

func TestPublish_SlowSubscriberDroppedAlone(t *testing.T) {
	bus := New(2, nil)
	slow := bus.Subscribe("")
	fast := bus.Subscribe("")

	var fastGot []Envelope
	for i := 0; i < 5; i++ {
		bus.Publish("message", "a", i)
		fastGot = append(fastGot, drain(fast)...)
	}

	assert.Len(t, fastGot, 5)
	assert.Equal(t, 1, bus.Count())
	assert.Equal(t, int64(1), bus.Dropped())

	// the slow subscriber's channel is closed after its buffered events
	got := drain(slow)
	assert.Len(t, got, 2)
	_, open := <-slow.C()
	assert.False(t, open)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	bus := New(4, nil)
	sub := bus.Subscribe("a")

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	bus.Unsubscribe(nil)
	assert.Equal(t, 0, bus.Count())

	bus.Publish("message", "a", "late")
	_, open := <-sub.C()
	assert.False(t, open)
}

func TestEnvelope_Encode(t *testing.T) {
	frame, err := Envelope{Event: "qr", ClientID: "c1", Payload: map[string]string{"qr": "abc"}}.Encode()
	require.NoError(t, err)

	text := string(frame)
	assert.True(t, strings.HasPrefix(text, "event: qr\ndata: "))
	assert.True(t, strings.HasSuffix(text, "\n\n"))

	data := strings.TrimSuffix(strings.TrimPrefix(text, "event: qr\ndata: "), "\n\n")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &decoded))
	assert.Equal(t, "c1", decoded["clientId"])
	assert.Equal(t, map[string]any{"qr": "abc"}, decoded["payload"])
}

func TestClose_ClosesAllSubscriptions(t *testing.T) {
	bus := New(4, nil)
	subs := make([]*Subscription, 3)
	for i := range subs {
		subs[i] = bus.Subscribe(fmt.Sprint(i))
	}
	bus.Close()
	for _, s := range subs {
		_, open := <-s.C()
		assert.False(t, open)
	}
	assert.Equal(t, 0, bus.Count())
}
