package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zombor/eco-receipts/internal/export"
	"github.com/zombor/eco-receipts/internal/receipt"
	"github.com/zombor/eco-receipts/internal/session"
)

const (
	// uploadField is the multipart field holding the receipt file
	uploadField = "receipt"

	// multipartOverhead leaves room for boundaries and part headers
	multipartOverhead = 1 << 20
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string        `json:"token"`
	User  *session.User `json:"user"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &session.AuthError{Op: "register", Err: fmt.Errorf("%w: %v", session.ErrInvalidInput, err)})
		return
	}

	sess, err := s.sessions.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse{Token: sess.Token, User: sess.User})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &session.AuthError{Op: "login", Err: fmt.Errorf("%w: %v", session.ErrInvalidInput, err)})
		return
	}

	sess, err := s.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Token: sess.Token, User: sess.User})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.sessions.Logout(); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSession shows the user only to the holder of the session token
func (s *Server) handleSession(c *gin.Context) {
	if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
		if _, err := s.sessions.Authorize(c.Request.Context(), token); err == nil {
			c.JSON(http.StatusOK, s.sessions.Current())
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"state": s.sessions.Current().State})
}

// handleListReceipts waits for the initial load before answering
func (s *Server) handleListReceipts(c *gin.Context) {
	if err := s.receipts.Load(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.receipts.Receipts())
}

func (s *Server) handleStats(c *gin.Context) {
	if err := s.receipts.Load(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.receipts.Stats())
}

// handleUploadReceipt accepts a multipart form with exactly one file
func (s *Server) handleUploadReceipt(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, receipt.MaxUploadSize+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		if isBodyTooLarge(err) {
			writeError(c, &receipt.UploadError{Err: receipt.ErrTooLarge})
			return
		}
		slog.Warn("Error parsing multipart form", "error", err)
		writeError(c, &receipt.UploadError{Err: fmt.Errorf("%w: malformed form", receipt.ErrNoFile)})
		return
	}

	total := 0
	for _, headers := range form.File {
		total += len(headers)
	}
	files := form.File[uploadField]
	switch {
	case len(files) == 0:
		writeError(c, &receipt.UploadError{Err: receipt.ErrNoFile})
		return
	case total > 1:
		writeError(c, &receipt.UploadError{Err: receipt.ErrMultipleFiles})
		return
	}

	header := files[0]
	if header.Size > receipt.MaxUploadSize {
		writeError(c, &receipt.UploadError{Filename: header.Filename, Err: receipt.ErrTooLarge})
		return
	}

	f, err := header.Open()
	if err != nil {
		writeError(c, fmt.Errorf("opening upload: %w", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(c, fmt.Errorf("reading upload: %w", err))
		return
	}

	up := receipt.Upload{Filename: header.Filename, Data: data}
	if user := currentUser(c); user != nil {
		up.UserID = user.ID
	}

	r, err := s.receipts.Upload(c.Request.Context(), up)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func (s *Server) handleGetReceipt(c *gin.Context) {
	r, err := s.receipts.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleGetReceiptFile(c *gin.Context) {
	data, contentType, err := s.receipts.File(c.Param("id"))
	if err != nil {
		if !errors.Is(err, receipt.ErrNotFound) {
			slog.Warn("Receipt file unavailable", "id", c.Param("id"), "error", err)
		}
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "file not found"})
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// handleDeleteReceipt answers 204 whether or not the receipt existed
func (s *Server) handleDeleteReceipt(c *gin.Context) {
	s.receipts.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExportReceipts(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.JSON)))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.receipts.Load(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, s.receipts.Receipts()); err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
