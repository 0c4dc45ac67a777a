package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stageboard/stageboard/internal/models"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.store.Login(req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handlers) logout(c *gin.Context) {
	h.store.Logout()
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	u := h.store.CurrentUser()
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *handlers) listUsers(c *gin.Context) {
	role := models.Role(c.Query("role"))
	if role != "" && !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role " + string(role)})
		return
	}
	out := []models.User{}
	for _, u := range h.store.Users() {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	c.JSON(http.StatusOK, out)
}
