package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mysbind/userhub/internal/service"
	"mysbind/userhub/pkg/response"
)

type AdminHandler struct {
	noteUserService service.NoteUserService
}

func NewAdminHandler(noteUserService service.NoteUserService) *AdminHandler {
	return &AdminHandler{noteUserService: noteUserService}
}

// Sweep checks the cookies of every bound user. A sweep that stops early
// still reports what it covered.
func (h *AdminHandler) Sweep(c *gin.Context) {
	summary, err := h.noteUserService.SweepAll(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		response.ErrorWithData(c, http.StatusInternalServerError, "sweep incomplete", summary)
		return
	}
	response.Success(c, summary)
}
