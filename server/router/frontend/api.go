package frontend

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/elva/internal/errors"
	"github.com/hrygo/elva/plugin/ai/genui"
	"github.com/hrygo/elva/plugin/ai/session"
	"github.com/hrygo/elva/plugin/ai/transcript"
)

// StateResponse is the full view of a session.
type StateResponse struct {
	SessionID  string               `json:"session_id"`
	Messages   []transcript.Message `json:"messages"`
	Components []genui.UIComponent  `json:"components"`
	InFlight   int                  `json:"in_flight"`
}

func stateResponse(state *session.State) *StateResponse {
	return &StateResponse{
		SessionID:  state.ID(),
		Messages:   state.Transcript.Messages(),
		Components: genui.Generate(viewOf(state)),
		InFlight:   state.Chat.InFlight(),
	}
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ApprovalRequest is the body of POST /api/v1/approval.
type ApprovalRequest struct {
	Approved bool `json:"approved"`
}

// DraftRequest is the body of PATCH /api/v1/approval/draft.
// Key and Value edit one field; Editing toggles the form.
type DraftRequest struct {
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
	Editing *bool  `json:"editing,omitempty"`
}

// LinkResponse is the body of POST /api/v1/link.
type LinkResponse struct {
	AuthURL string `json:"auth_url"`
}

// GetState returns the session view, mounting the session on first use.
// GET /api/v1/state
func (s *FrontendService) GetState(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	s.mount(c.Request().Context(), state)
	return c.JSON(http.StatusOK, stateResponse(state))
}

// PostChat submits an utterance and waits for the reply.
// POST /api/v1/chat
func (s *FrontendService) PostChat(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, errors.InvalidArgument("invalid request body"))
	}
	if strings.TrimSpace(req.Message) == "" {
		return errorJSON(c, errors.InvalidArgument("message is required"))
	}
	if err := state.Chat.Submit(c.Request().Context(), req.Message); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, stateResponse(state))
}

// PostApproval resolves the pending approval.
// POST /api/v1/approval
func (s *FrontendService) PostApproval(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	var req ApprovalRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, errors.InvalidArgument("invalid request body"))
	}
	if err := state.Approval.Resolve(c.Request().Context(), req.Approved); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, stateResponse(state))
}

// PatchDraft edits the pending draft.
// PATCH /api/v1/approval/draft
func (s *FrontendService) PatchDraft(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	var req DraftRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, errors.InvalidArgument("invalid request body"))
	}
	if req.Key == "" && req.Editing == nil {
		return errorJSON(c, errors.InvalidArgument("key or editing is required"))
	}
	if req.Key != "" {
		if err := state.Approval.UpdateField(req.Key, req.Value); err != nil {
			return errorJSON(c, err)
		}
	}
	if req.Editing != nil {
		if err := state.Approval.SetEditing(*req.Editing); err != nil {
			return errorJSON(c, err)
		}
	}
	return c.JSON(http.StatusOK, stateResponse(state))
}

// PostLink starts the OAuth flow and returns the consent URL.
// POST /api/v1/link
func (s *FrontendService) PostLink(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	authURL, err := state.Link.Initiate(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, LinkResponse{AuthURL: authURL})
}

// PostNew starts a new conversation.
// POST /api/v1/new
func (s *FrontendService) PostNew(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	oldID := state.ID()
	newID := s.Registry.Reset(state)
	s.Limiter.Forget(oldID)
	if err := s.setCookie(c, newID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stateResponse(state))
}

// DeleteHistory clears the stored history.
// DELETE /api/v1/history
func (s *FrontendService) DeleteHistory(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	if err := state.Chat.ClearHistory(c.Request().Context()); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, stateResponse(state))
}
