package rest

import (
	"bufio"
	"time"

	"github.com/AzielCF/wa-relay/pkg/eventbus"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

type Events struct {
	Bus       *eventbus.Bus
	Heartbeat time.Duration
}

func InitRestEvents(app fiber.Router, bus *eventbus.Bus, heartbeat time.Duration) Events {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	rest := Events{Bus: bus, Heartbeat: heartbeat}
	app.Get("/events", rest.Stream)
	return rest
}

// Stream opens a server-sent event stream. ?client= restricts it to one
// session. The subscription is dropped when a write fails.
func (controller *Events) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := controller.Bus.Subscribe(c.Query("client"))
	heartbeat := controller.Heartbeat

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer controller.Bus.Unsubscribe(sub)
		log := logrus.WithField("filter", sub.Filter())
		log.Debug("[EVENTS] Subscriber connected")

		if _, err := w.WriteString("\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case env, ok := <-sub.C():
				if !ok {
					return
				}
				frame, err := env.Encode()
				if err != nil {
					log.WithError(err).Warnf("[EVENTS] Failed to encode %s event", env.Event)
					continue
				}
				if _, err := w.Write(frame); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					log.Debug("[EVENTS] Subscriber disconnected")
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					log.Debug("[EVENTS] Subscriber disconnected")
					return
				}
			}
		}
	}))
	return nil
}
