package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mysbind/userhub/internal/identity"
	"mysbind/userhub/internal/service"
	"mysbind/userhub/pkg/response"
)

type NoteUserHandler struct {
	noteUserService service.NoteUserService
}

func NewNoteUserHandler(noteUserService service.NoteUserService) *NoteUserHandler {
	return &NoteUserHandler{noteUserService: noteUserService}
}

type RegisterUidRequest struct {
	Uid  string `json:"uid" binding:"required"`
	Game string `json:"game"`
}

type SetActiveUidRequest struct {
	Uid   string `json:"uid"`
	Index *int   `json:"index"`
	Game  string `json:"game"`
}

type BindCookieRequest struct {
	Ltuid  string              `json:"ltuid" binding:"required"`
	Cookie string              `json:"cookie" binding:"required"`
	IsMain bool                `json:"is_main"`
	Uids   map[string][]string `json:"uids"`
}

// CheckResultView is one cookie's health check as returned to clients.
type CheckResultView struct {
	Ltuid   string `json:"ltuid"`
	Status  int    `json:"status"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ListUids returns the caller's bindings, for one game if ?game= is set.
func (h *NoteUserHandler) ListUids(c *gin.Context) {
	userKey, err := getUserKeyFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	snap, err := h.noteUserService.View(c.Request.Context(), userKey)
	if err != nil {
		writeServiceError(c, err, nil)
		return
	}

	code, filtered := c.GetQuery("game")
	if !filtered {
		response.Success(c, snap)
		return
	}
	g, _ := identity.ParseGame(code)
	view, ok := snap.Game(g)
	if !ok {
		response.BadRequest(c, service.ErrGameUnsupported.Error())
		return
	}
	response.Success(c, view)
}

func (h *NoteUserHandler) RegisterUid(c *gin.Context) {
	userKey, err := getUserKeyFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req RegisterUidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	view, err := h.noteUserService.RegisterUid(c.Request.Context(), userKey, req.Game, req.Uid)
	if err != nil {
		writeServiceError(c, err, nil)
		return
	}
	response.Success(c, view)
}

// UnregisterUid refuses cookie UIDs and unknown UIDs alike with 409.
func (h *NoteUserHandler) UnregisterUid(c *gin.Context) {
	userKey, err := getUserKeyFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	view, err := h.noteUserService.UnregisterUid(c.Request.Context(), userKey, c.Query("game"), c.Param("uid"))
	if err != nil {
		writeServiceError(c, err, map[error]int{service.ErrUidNotFound: http.StatusConflict})
		return
	}
	response.Success(c, view)
}

func (h *NoteUserHandler) SetActiveUid(c *gin.Context) {
	userKey, err := getUserKeyFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req SetActiveUidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	selector := req.Uid
	if req.Index != nil {
		selector = strconv.Itoa(*req.Index)
	}
	if selector == "" {
		response.BadRequest(c, "uid or index is required")
		return
	}

	view, err := h.noteUserService.SetActiveUid(c.Request.Context(), userKey, req.Game, selector)
	if err != nil {
		writeServiceError(c, err, nil)
		return
	}
	response.Success(c, view)
}

func (h *NoteUserHandler) BindCookie(c *gin.Context) {
	userKey, err := getUserKeyFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req BindCookieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	snap, err := h.noteUserService.BindCookie(c.Request.Context(), userKey, service.BindCookieInput{
		Ltuid:  req.Ltuid,
		Cookie: req.Cookie,
		IsMain: req.IsMain,
		Uids:   req.Uids,
	})
	if err != nil {
		writeServiceError(c, err, nil)
		return
	}
	response.Success(c, snap)
}

func (h *NoteUserHandler) UnbindCookie(c *gin.Context) {
	userKey, err := getUserKeyFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	snap, err := h.noteUserService.UnbindCookie(c.Request.Context(), userKey, c.Param("ltuid"))
	if err != nil {
		writeServiceError(c, err, nil)
		return
	}
	response.Success(c, snap)
}

// CheckCookies answers 502 when every checked cookie failed to reach the
// probe, since nothing about the cookies was learned.
func (h *NoteUserHandler) CheckCookies(c *gin.Context) {
	userKey, err := getUserKeyFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	results, err := h.noteUserService.CheckCookies(c.Request.Context(), userKey)
	if err != nil {
		writeServiceError(c, err, nil)
		return
	}

	views := make([]CheckResultView, 0, len(results))
	failed := 0
	for _, res := range results {
		v := CheckResultView{
			Ltuid:   res.OwnerID,
			Status:  int(res.Status),
			State:   res.Status.String(),
			Message: res.Message,
		}
		if res.Err != nil {
			failed++
			v.Error = res.Err.Error()
		}
		views = append(views, v)
	}
	if len(views) > 0 && failed == len(views) {
		response.BadGateway(c, "cookie check failed", views)
		return
	}
	response.Success(c, views)
}
