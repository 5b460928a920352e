package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/classroom"
	"classattend/internal/metrics"
	"classattend/internal/queue"
)

// ClassDirectory is the slice of classroom persistence the handlers use.
type ClassDirectory interface {
	CreateClass(ctx context.Context, code, name, professorID string) (classroom.Class, error)
	GetClassByCode(ctx context.Context, code string) (classroom.Class, error)
	Join(ctx context.Context, classID, studentID, rollNumber, fullName string) (classroom.Member, error)
	SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
}

// TokenConfig carries what the token endpoint needs to mint JWTs.
type TokenConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Handler exposes the HTTP surface over the attendance service.
type Handler struct {
	svc     *attendance.Service
	classes ClassDirectory
	q       queue.Queue // nil when async verification is off
	tokens  TokenConfig
}

// New creates a handler. q may be nil.
func New(svc *attendance.Service, classes ClassDirectory, q queue.Queue, tokens TokenConfig) *Handler {
	return &Handler{svc: svc, classes: classes, q: q, tokens: tokens}
}

// ---------- Auth ----------

type tokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=student professor"`
}

// Token issues access+refresh JWTs for an upstream-authenticated identity.
func (h *Handler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := auth.Issue(req.UserID, req.Role, h.tokens.Issuer, h.tokens.SigningKey, h.tokens.AccessTTL, h.tokens.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	if h.classes != nil {
		if err := h.classes.SaveRefreshToken(c.Request.Context(), req.UserID, pair.RefreshToken, pair.RefreshExp); err != nil {
			log.Printf("refresh token save failed for user %s: %v", req.UserID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.AccessExp.Unix(),
	})
}

// ---------- Classes ----------

type createClassRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name"`
}

// CreateClass registers a class owned by the requesting professor.
func (h *Handler) CreateClass(c *gin.Context) {
	var req createClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	class, err := h.classes.CreateClass(c.Request.Context(), req.Code, req.Name, claims.Subject)
	if err != nil {
		if errors.Is(err, classroom.ErrCodeTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		log.Printf("create class failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create class"})
		return
	}
	c.JSON(http.StatusCreated, class)
}

// ClassByCode resolves a class by its human code.
func (h *Handler) ClassByCode(c *gin.Context) {
	code := c.Query("classCode")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "classCode is required"})
		return
	}

	class, err := h.classes.GetClassByCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, classroom.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
			return
		}
		log.Printf("class lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch class"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"classId": class.ID, "classCode": class.Code})
}

type joinRequest struct {
	RollNumber string `json:"roll_number" binding:"required"`
	FullName   string `json:"full_name"`
}

// JoinClass enrolls the requesting student under a roll number.
func (h *Handler) JoinClass(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	member, err := h.classes.Join(c.Request.Context(), c.Param("id"), claims.Subject, req.RollNumber, req.FullName)
	if err != nil {
		if errors.Is(err, classroom.ErrAlreadyJoined) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		log.Printf("join class failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join class"})
		return
	}
	c.JSON(http.StatusCreated, member)
}

// ---------- Sessions ----------

type createSessionRequest struct {
	ClassID string `json:"class_id" binding:"required"`
}

// CreateSession creates a session with a fresh code, not yet activated.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "classId required"})
		return
	}

	sess, err := h.svc.CreateSession(c.Request.Context(), req.ClassID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	metrics.SessionsCreated.Inc()
	c.JSON(http.StatusOK, gin.H{
		"sessionId":      sess.ID,
		"attendanceCode": sess.AttendanceCode,
	})
}

// ActivateSession opens the code window for a session.
func (h *Handler) ActivateSession(c *gin.Context) {
	if err := h.svc.ActivateSession(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	metrics.SessionsActivated.Inc()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ---------- Attendance ----------

type verifyCodeRequest struct {
	ClassID        string `json:"class_id" binding:"required"`
	AttendanceCode string `json:"attendance_code" binding:"required"`
}

// VerifyCode exchanges class+code for a session handle.
func (h *Handler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "classId and attendanceCode are required"})
		return
	}

	sess, err := h.svc.VerifyCode(c.Request.Context(), req.ClassID, req.AttendanceCode)
	if err != nil {
		metrics.CodeVerifications.WithLabelValues("rejected").Inc()
		h.writeError(c, err)
		return
	}
	metrics.CodeVerifications.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"sessionId":           sess.ID,
		"selfieWindowSeconds": h.svc.SelfieWindowSeconds(),
	})
}

type submitSelfieRequest struct {
	SessionID     string   `json:"session_id" binding:"required"`
	SelfRoll      string   `json:"self_roll" binding:"required"`
	NeighborRolls []string `json:"neighbor_rolls" binding:"max=2"`
	ImageBase64   string   `json:"image_base64" binding:"required"`
}

// SubmitSelfie admits a selfie submission for the requesting student.
func (h *Handler) SubmitSelfie(c *gin.Context) {
	var req submitSelfieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	result, err := h.svc.SubmitSelfie(c.Request.Context(), attendance.Submission{
		SessionID:     req.SessionID,
		StudentID:     claims.Subject,
		SelfRoll:      req.SelfRoll,
		NeighborRolls: req.NeighborRolls,
		ImageBase64:   req.ImageBase64,
	})
	if err != nil {
		metrics.Admissions.WithLabelValues("rejected").Inc()
		h.writeError(c, err)
		return
	}
	metrics.Admissions.WithLabelValues("ok").Inc()

	// Async path: hand the submission to the worker for verification.
	if result.Verification == nil && h.q != nil {
		rolls := make([]string, 0, len(result.Records))
		for _, rec := range result.Records {
			rolls = append(rolls, rec.RollNumber)
		}
		msg, err := queue.NewSelfieMessage(queue.SelfieJob{
			SessionID: req.SessionID,
			ClassID:   result.Records[0].ClassID,
			StudentID: claims.Subject,
			ImageURL:  result.ImageURL,
			Rolls:     rolls,
		})
		if err == nil {
			if err := h.q.Publish(c.Request.Context(), msg); err != nil {
				log.Printf("queue publish failed: %v", err)
			}
		}
	}

	resp := gin.H{"success": true}
	if result.Verification != nil {
		resp["verification"] = result.Verification
	}
	c.JSON(http.StatusOK, resp)
}

// ListRecords returns a class's attendance for the professor.
func (h *Handler) ListRecords(c *gin.Context) {
	classID := c.Query("classId")
	if classID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "classId required"})
		return
	}

	records, err := h.svc.ListRecords(c.Request.Context(), classID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if records == nil {
		records = []attendance.RecordView{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// writeError maps domain errors to HTTP statuses. Storage and upstream
// failures are logged and surfaced as a generic message.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrValidation), errors.Is(err, attendance.ErrDuplicateRoll):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrClassNotFound), errors.Is(err, attendance.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrWindowClosed), errors.Is(err, attendance.ErrInvalidSession), errors.Is(err, attendance.ErrWindowExpired):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
