// Copyright 2026 Noesis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`

	// Target selects the audience tier ("STD", "KIDS", ...).
	Target string `json:"target,omitempty"`

	// Stream switches the response to Server-Sent Events.
	Stream bool `json:"stream,omitempty"`
}

func (s *Server) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	t, chatter, err := s.resolveChatter(c)
	if err != nil {
		return err
	}

	if req.Stream {
		return s.chatStream(c, chatter, req)
	}

	answer, err := chatter.Ask(c.Request().Context(), req.SessionID, req.Target, req.Question)
	if err != nil {
		return err
	}
	s.logger.Debug("chat answered",
		zap.String("tenant", t.ID),
		zap.String("session", answer.SessionID),
		zap.String("source", string(answer.Source)))
	return c.JSON(http.StatusOK, answer)
}

// chatStream replays the answer as SSE: one "token" event per text
// delta, then a final "answer" event with the full payload. Errors
// after the stream opened arrive as an "error" event since the status
// line is already gone.
func (s *Server) chatStream(c echo.Context, chatter Chatter, req chatRequest) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	send := func(event string, payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		_, _ = resp.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n"))
		flusher.Flush()
	}

	answer, err := chatter.AskStream(c.Request().Context(), req.SessionID, req.Target, req.Question,
		func(token string) { send("token", token) })
	if err != nil {
		_, code, msg := mapError(err)
		send("error", map[string]string{"error": msg, "code": code})
		return nil
	}

	send("answer", answer)
	return nil
}
