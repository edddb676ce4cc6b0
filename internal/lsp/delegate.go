package lsp

import (
	"context"
	"encoding/json"
	"time"
)

// delegateTimeout bounds a forwarded feature request. Past it the front-end
// answers degraded instead of stalling the editor.
const delegateTimeout = 4 * time.Second

// delegate forwards a request to the analyzer session verbatim and returns
// the raw result. ok is false when no session can answer right now.
func (s *Server) delegate(method string, params json.RawMessage) (json.RawMessage, bool) {
	session := s.currentSession()
	if session == nil || !session.Ready() {
		return nil, false
	}
	base := s.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithTimeout(base, delegateTimeout)
	defer cancel()
	var forwarded any
	if len(params) > 0 {
		forwarded = params
	}
	result, err := session.Request(ctx, method, forwarded)
	if err != nil {
		s.logf("delegated %s failed: %v", method, err)
		return nil, false
	}
	return result, true
}

// handleDelegated serves a request the front-end has no local answer for:
// the analyzer result passes through, or the reply is null.
func (s *Server) handleDelegated(msg *rpcMessage, method string) error {
	if result, ok := s.delegate(method, msg.Params); ok {
		return s.sendResponse(msg.ID, json.RawMessage(result))
	}
	return s.sendResponse(msg.ID, nil)
}
