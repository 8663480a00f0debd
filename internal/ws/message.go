package ws

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// ServeWS upgrades the request to a websocket. A token, from the query or the
// Authorization header, is optional; when present it must be valid and it
// fixes the identity the connection may join as.
func (ch *Chat) ServeWS(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	ch.logger.Debug("[WS] New WebSocket connection request", "from", remoteAddr)

	// Extract token from query param or header
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	verifiedID := ""
	if token != "" && ch.tokens != nil {
		userID, err := ch.tokens.Validate(token)
		if err != nil {
			ch.logger.Warn("[WS] Token validation failed", "from", remoteAddr, "error", err)
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}
		verifiedID = userID
		ch.logger.Debug("[WS] Token validated", "user", userID, "from", remoteAddr)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ch.logger.Error("[WS] Failed to upgrade connection", "from", remoteAddr, "error", err)
		return
	}

	var limiter *rate.Limiter
	if ch.opts.RateLimit > 0 {
		burst := ch.opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ch.opts.RateLimit), burst)
	}

	client := newClient(ch.hub, ch, conn, limiter, verifiedID)
	if !ch.hub.Register(client) {
		ch.logger.Warn("[WS] Hub stopped, refusing connection", "from", remoteAddr)
		conn.Close()
		return
	}

	ch.logger.Info("[WS] Connection upgraded", "from", remoteAddr, "verified_user", verifiedID)

	go client.WritePump()
	go client.ReadPump()
}
