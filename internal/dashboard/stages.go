package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stageboard/stageboard/internal/models"
)

type stageRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
}

func (r stageRequest) apply(st *models.Stage) {
	if r.Title != nil {
		st.Title = *r.Title
	}
	if r.Description != nil {
		st.Description = *r.Description
	}
	if r.Order != nil {
		st.Order = *r.Order
	}
}

type taskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
	Completed   *bool   `json:"completed"`
	StageID     *string `json:"stageId"`
}

func (r taskRequest) apply(t *models.Task) {
	if r.Title != nil {
		t.Title = *r.Title
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Order != nil {
		t.Order = *r.Order
	}
	if r.Completed != nil {
		t.Completed = *r.Completed
	}
	if r.StageID != nil && *r.StageID != t.StageID {
		t.StageID = *r.StageID
		if r.Order == nil {
			t.Order = 0
		}
	}
}

// visibleStage resolves a stage whose project the current user may see.
func (h *handlers) visibleStage(c *gin.Context, id string) (*models.Stage, bool) {
	st, err := h.store.Stage(id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if _, ok := h.visibleProject(c, st.ProjectID); !ok {
		return nil, false
	}
	return st, true
}

func (h *handlers) visibleTask(c *gin.Context, id string) (*models.Task, bool) {
	t, err := h.store.Task(id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if _, ok := h.visibleProject(c, t.ProjectID); !ok {
		return nil, false
	}
	return t, true
}

func (h *handlers) listStages(c *gin.Context) {
	p, ok := h.visibleProject(c, c.Param("id"))
	if !ok {
		return
	}
	stages := h.store.Stages(p.ID)
	if stages == nil {
		stages = []models.Stage{}
	}
	c.JSON(http.StatusOK, stages)
}

func (h *handlers) createStage(c *gin.Context) {
	p, ok := h.visibleProject(c, c.Param("id"))
	if !ok {
		return
	}
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st := models.Stage{ProjectID: p.ID}
	req.apply(&st)
	created, err := h.store.AddStage(st)
	writeResult(c, http.StatusCreated, created, err)
}

func (h *handlers) updateStage(c *gin.Context) {
	st, ok := h.visibleStage(c, c.Param("id"))
	if !ok {
		return
	}
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.apply(st)
	updated, err := h.store.UpdateStage(*st)
	writeResult(c, http.StatusOK, updated, err)
}

func (h *handlers) deleteStage(c *gin.Context) {
	st, ok := h.visibleStage(c, c.Param("id"))
	if !ok {
		return
	}
	if err := h.store.DeleteStage(st.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listTasks(c *gin.Context) {
	st, ok := h.visibleStage(c, c.Param("id"))
	if !ok {
		return
	}
	tasks := h.store.Tasks(st.ID)
	if tasks == nil {
		tasks = []models.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *handlers) createTask(c *gin.Context) {
	st, ok := h.visibleStage(c, c.Param("id"))
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t := models.Task{StageID: st.ID}
	req.StageID = nil
	req.apply(&t)
	created, err := h.store.AddTask(t)
	writeResult(c, http.StatusCreated, created, err)
}

func (h *handlers) updateTask(c *gin.Context) {
	t, ok := h.visibleTask(c, c.Param("id"))
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.apply(t)
	updated, err := h.store.UpdateTask(*t)
	writeResult(c, http.StatusOK, updated, err)
}

func (h *handlers) toggleTask(c *gin.Context) {
	t, ok := h.visibleTask(c, c.Param("id"))
	if !ok {
		return
	}
	toggled, err := h.store.ToggleTask(t.ID)
	writeResult(c, http.StatusOK, toggled, err)
}

func (h *handlers) deleteTask(c *gin.Context) {
	t, ok := h.visibleTask(c, c.Param("id"))
	if !ok {
		return
	}
	if err := h.store.DeleteTask(t.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
