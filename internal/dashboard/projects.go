package dashboard

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stageboard/stageboard/internal/announce"
	"github.com/stageboard/stageboard/internal/models"
	"github.com/stageboard/stageboard/internal/state"
)

// projectRequest carries the editable project fields. Absent fields are
// left as they are on update.
type projectRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	StartDate   *string  `json:"startDate"`
	EndDate     *string  `json:"endDate"`
	Value       *float64 `json:"value"`
	ManagerID   *string  `json:"managerId"`
	ClientID    *string  `json:"clientId"`
}

func (r projectRequest) apply(p *models.Project) error {
	if r.Title != nil {
		p.Title = *r.Title
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Value != nil {
		p.Value = *r.Value
	}
	if r.ManagerID != nil {
		p.ManagerID = *r.ManagerID
	}
	if r.ClientID != nil {
		p.ClientID = *r.ClientID
	}
	var err error
	if r.StartDate != nil {
		if p.StartDate, err = parseDate(*r.StartDate); err != nil {
			return fmt.Errorf("startDate: %w", err)
		}
	}
	if r.EndDate != nil {
		if p.EndDate, err = parseDate(*r.EndDate); err != nil {
			return fmt.Errorf("endDate: %w", err)
		}
	}
	return nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. The empty
// string clears the date.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%q is not a date", s)
}

type stageView struct {
	models.Stage
	Tasks []models.Task `json:"tasks"`
}

type projectDetail struct {
	models.Project
	Stages []stageView `json:"stages"`
}

// visibleProject looks a project up among those the current user may see
// and answers 404 otherwise.
func (h *handlers) visibleProject(c *gin.Context, id string) (*models.Project, bool) {
	for _, p := range h.store.VisibleProjects() {
		if p.ID == id {
			return &p, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "project " + id + " not found"})
	return nil, false
}

func (h *handlers) listProjects(c *gin.Context) {
	q := state.Query{
		Status: models.Status(c.Query("status")),
		Search: c.Query("q"),
		Sort: state.SortOptions{
			Field: state.SortField(c.Query("sort")),
			Desc:  c.Query("order") == "desc",
		},
	}
	if q.Status != "" && q.Status != state.FilterAll && !q.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + string(q.Status)})
		return
	}
	if !q.Sort.Field.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sort field " + string(q.Sort.Field)})
		return
	}
	c.JSON(http.StatusOK, h.store.QueryProjects(q))
}

func (h *handlers) getProject(c *gin.Context) {
	p, ok := h.visibleProject(c, c.Param("id"))
	if !ok {
		return
	}
	detail := projectDetail{Project: *p, Stages: []stageView{}}
	for _, st := range h.store.Stages(p.ID) {
		tasks := h.store.Tasks(st.ID)
		if tasks == nil {
			tasks = []models.Task{}
		}
		detail.Stages = append(detail.Stages, stageView{Stage: st, Tasks: tasks})
	}
	c.JSON(http.StatusOK, detail)
}

func (h *handlers) createProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var p models.Project
	if err := req.apply(&p); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.store.AddProject(p)
	writeResult(c, http.StatusCreated, created, err)
}

func (h *handlers) updateProject(c *gin.Context) {
	p, ok := h.visibleProject(c, c.Param("id"))
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.apply(p); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.store.UpdateProject(*p)
	writeResult(c, http.StatusOK, updated, err)
}

func (h *handlers) cancelProject(c *gin.Context) {
	p, ok := h.visibleProject(c, c.Param("id"))
	if !ok {
		return
	}
	cancelled, err := h.store.CancelProject(p.ID)
	writeResult(c, http.StatusOK, cancelled, err)
}

func (h *handlers) deleteProject(c *gin.Context) {
	p, ok := h.visibleProject(c, c.Param("id"))
	if !ok {
		return
	}
	if err := h.store.DeleteProject(p.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// shareProject renders the plain share text, or with format=whatsapp the
// stage update message and its wa.me link.
func (h *handlers) shareProject(c *gin.Context) {
	p, ok := h.visibleProject(c, c.Param("id"))
	if !ok {
		return
	}
	switch c.DefaultQuery("format", "text") {
	case "text":
		c.JSON(http.StatusOK, gin.H{"text": announce.ShareText(*p)})
	case "whatsapp":
		stageTitle, err := h.shareStage(p.ID, c.Query("stage"))
		if err != nil {
			writeError(c, err)
			return
		}
		msg := announce.WhatsAppMessage(p.Title, stageTitle, announce.ProjectLink(h.baseURL, p.ID))
		c.JSON(http.StatusOK, gin.H{
			"text": msg,
			"url":  announce.WhatsAppURL(c.Query("phone"), msg),
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be text or whatsapp"})
	}
}

// shareStage names the stage a WhatsApp update is about: the requested one,
// else the first stage not yet completed, else the last stage.
func (h *handlers) shareStage(projectID, stageID string) (string, error) {
	if stageID != "" {
		st, err := h.store.Stage(stageID)
		if err != nil {
			return "", err
		}
		if st.ProjectID != projectID {
			return "", fmt.Errorf("dashboard: stage %s: %w", stageID, errNotInProject)
		}
		return st.Title, nil
	}
	stages := h.store.Stages(projectID)
	if len(stages) == 0 {
		return "", nil
	}
	for _, st := range stages {
		if st.Status != models.StatusCompleted {
			return st.Title, nil
		}
	}
	return stages[len(stages)-1].Title, nil
}

func (h *handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

func (h *handlers) recent(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	c.JSON(http.StatusOK, h.store.RecentProjects(n))
}
