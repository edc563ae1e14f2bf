package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func RegisterRoutes(r fiber.Router, b *Broadcaster) {
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		client := b.Connect()
		defer b.Disconnect(client)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}
			b.HandleMessage(client, raw)
		}

		// Closing the send channel lets the writer drain and exit.
		b.Disconnect(client)
		<-done
	}))
}
