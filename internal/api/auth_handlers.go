package api

import (
	"errors"
	"log"
	"net/http"

	"backlogwatch/internal/auth"

	"github.com/gin-gonic/gin"
)

func (s *Server) login(c *gin.Context) {
	var credentials struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&credentials); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	pair, err := s.Auth.Login(c.Request.Context(), credentials.Username, credentials.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		log.Printf("auth login denied username=%s", credentials.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		log.Printf("auth login error username=%s: %v", credentials.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (s *Server) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	pair, err := s.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if errors.Is(err, auth.ErrInvalidToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	if err != nil {
		log.Printf("auth refresh error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (s *Server) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		log.Printf("auth logout error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func getPermissions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"permissions": auth.Permissions()})
}

func getMe(c *gin.Context) {
	role := c.GetString(auth.ContextRole)
	c.JSON(http.StatusOK, gin.H{
		"username":    c.GetString(auth.ContextUsername),
		"role":        role,
		"permissions": auth.Permissions()[role],
	})
}
