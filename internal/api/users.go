package api

import (
	"errors"
	"log"
	"net/http"

	"backlogwatch/internal/auth"
	"backlogwatch/internal/domain"
	"backlogwatch/internal/storage/sqlite"

	"github.com/gin-gonic/gin"
)

func (s *Server) listUsers(c *gin.Context) {
	users, err := sqlite.ListUsers(s.DB)
	if err != nil {
		storageError(c, err, "")
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) createUser(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,max=64"`
		Email    string `json:"email" binding:"omitempty,email"`
		Password string `json:"password" binding:"required,min=8"`
		Role     string `json:"role" binding:"omitempty,oneof=admin user"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	u, err := s.Auth.CreateUser(req.Username, req.Email, req.Password, req.Role)
	switch {
	case errors.Is(err, auth.ErrUserExists), errors.Is(err, sqlite.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
		return
	case errors.Is(err, auth.ErrUnknownRole), errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Printf("api create user username=%s error: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	log.Printf("api user created username=%s role=%s by=%s", u.Username, u.Role, c.GetString(auth.ContextUsername))
	c.JSON(http.StatusCreated, u)
}

func (s *Server) deleteUser(c *gin.Context) {
	username := c.Param("username")
	if username == c.GetString(auth.ContextUsername) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete your own account"})
		return
	}
	if err := sqlite.DeleteUser(s.DB, username); err != nil {
		storageError(c, err, "User not found")
		return
	}
	log.Printf("api user deleted username=%s by=%s", username, c.GetString(auth.ContextUsername))
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
