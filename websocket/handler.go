package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TokenValidator resolves a raw JWT into the user it belongs to.
type TokenValidator func(token string) (primitive.ObjectID, error)

// HandleWebSocket upgrades the connection and serves booking updates. A
// client that connects without a token can authenticate in-band by sending
// "AUTH:<token>".
func HandleWebSocket(c echo.Context, hub *Hub, userID primitive.ObjectID, validate TokenValidator) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		UserID:        userID,
		Conn:          conn,
		Authenticated: userID != primitive.NilObjectID,
	}

	hub.register <- client

	// Send a welcome message
	if client.Authenticated {
		conn.WriteJSON(Notification{
			Type:    "connected",
			Message: "WebSocket connection established",
			UserID:  userID.Hex(),
		})
	} else {
		conn.WriteJSON(Notification{
			Type:         "connected",
			Message:      "WebSocket connection established. Please authenticate to receive notifications.",
			RequiresAuth: true,
		})
	}

	// Handle disconnection
	go func() {
		defer func() {
			hub.unregister <- client
		}()

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				break
			}

			if messageType != websocket.TextMessage {
				continue
			}

			messageStr := string(message)
			if !strings.HasPrefix(messageStr, "AUTH:") {
				continue
			}
			if client.Authenticated || validate == nil {
				continue
			}

			token := strings.TrimPrefix(messageStr, "AUTH:")
			uid, err := validate(token)
			if err != nil {
				conn.WriteJSON(Notification{
					Type:         "auth_response",
					Message:      "Authentication failed",
					RequiresAuth: true,
				})
				continue
			}

			hub.AuthenticateClient(client, uid)
			conn.WriteJSON(Notification{
				Type:    "auth_response",
				Message: "Authenticated",
				UserID:  uid.Hex(),
			})
		}
	}()

	return nil
}
