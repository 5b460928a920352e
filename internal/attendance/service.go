package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Uploader stores a selfie image keyed by class/session/student with
// overwrite-on-retry semantics and returns a retrievable URL.
type Uploader interface {
	UploadSelfie(ctx context.Context, classID, sessionID, studentID, imageBase64 string) (string, error)
}

// FaceVerifier calls the external face-verification service. The
// response is opaque JSON relayed to the caller as-is.
type FaceVerifier interface {
	VerifyFace(ctx context.Context, classID, sessionID, imageURL string, rolls []string) (json.RawMessage, error)
}

// Submission is a validated selfie submission.
type Submission struct {
	SessionID     string
	StudentID     string
	SelfRoll      string
	NeighborRolls []string
	ImageBase64   string
}

// SubmitResult reports an admitted submission. Verification is non-nil
// only when the face service was consulted synchronously.
type SubmitResult struct {
	Records      []Record
	ImageURL     string
	Verification json.RawMessage
}

// Service coordinates the session lifecycle, code verification and
// attendance admission.
type Service struct {
	store        Store
	uploader     Uploader
	face         FaceVerifier
	syncVerify   bool
	codeWindow   time.Duration
	selfieWindow time.Duration
	now          func() time.Time
}

// NewService creates a service backed by a store. uploader and face may
// be nil when the respective backend is not configured.
func NewService(store Store, uploader Uploader, face FaceVerifier, syncVerify bool, codeWindow, selfieWindow time.Duration) *Service {
	if codeWindow <= 0 {
		codeWindow = 60 * time.Second
	}
	if selfieWindow <= 0 {
		selfieWindow = 120 * time.Second
	}
	return &Service{
		store:        store,
		uploader:     uploader,
		face:         face,
		syncVerify:   syncVerify,
		codeWindow:   codeWindow,
		selfieWindow: selfieWindow,
		now:          time.Now,
	}
}

// SelfieWindowSeconds is the fixed selfie window advertised to students.
func (s *Service) SelfieWindowSeconds() int {
	return int(s.selfieWindow / time.Second)
}

// CreateSession generates a code and inserts a session in the created
// state. It does not activate: the professor displays the code first and
// starts the window with an explicit ActivateSession call.
func (s *Service) CreateSession(ctx context.Context, classID string) (Session, error) {
	if strings.TrimSpace(classID) == "" {
		return Session{}, fmt.Errorf("%w: classId required", ErrValidation)
	}
	professorID, err := s.store.ClassProfessor(ctx, classID)
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		ID:             uuid.NewString(),
		ClassID:        classID,
		ProfessorID:    professorID,
		AttendanceCode: GenerateCode(),
		Status:         StatusCreated,
		IsActive:       false,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.InsertSession(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// ActivateSession opens the code window for a session, expiring any other
// active session of the same class first. The whole transition is atomic
// in the store; after success exactly one session of the class is active.
func (s *Service) ActivateSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: sessionId required", ErrValidation)
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return err
	}
	return s.store.ActivateSession(ctx, sessionID, s.now().UTC())
}

// VerifyCode exchanges a class id + attendance code for a session handle.
// Every rejection is ErrWindowClosed: the caller never learns which
// predicate failed.
func (s *Service) VerifyCode(ctx context.Context, classID, code string) (Session, error) {
	if strings.TrimSpace(classID) == "" || strings.TrimSpace(code) == "" {
		return Session{}, fmt.Errorf("%w: classId and attendanceCode required", ErrValidation)
	}
	sess, err := s.store.FindValidSession(ctx, classID, strings.TrimSpace(code), s.now().UTC(), s.codeWindow)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// SubmitSelfie validates a submission against the session's open window,
// stores the image, and admits the self row plus up to two neighbor rows
// as one atomic event. The selfie window is measured from the same
// activation timestamp as the code window, never from verification time.
func (s *Service) SubmitSelfie(ctx context.Context, sub Submission) (SubmitResult, error) {
	if sub.SessionID == "" || sub.StudentID == "" || sub.ImageBase64 == "" || strings.TrimSpace(sub.SelfRoll) == "" {
		return SubmitResult{}, fmt.Errorf("%w: sessionId, selfRoll and image required", ErrValidation)
	}
	if len(sub.NeighborRolls) > 2 {
		return SubmitResult{}, fmt.Errorf("%w: at most 2 neighbor rolls", ErrValidation)
	}

	selfRoll := strings.TrimSpace(sub.SelfRoll)
	seen := map[string]bool{selfRoll: true}
	neighbors := make([]string, 0, len(sub.NeighborRolls))
	for _, roll := range sub.NeighborRolls {
		roll = strings.TrimSpace(roll)
		if roll == "" {
			return SubmitResult{}, fmt.Errorf("%w: empty neighbor roll", ErrValidation)
		}
		if seen[roll] {
			return SubmitResult{}, ErrDuplicateRoll
		}
		seen[roll] = true
		neighbors = append(neighbors, roll)
	}

	sess, err := s.store.GetSession(ctx, sub.SessionID)
	if err != nil {
		return SubmitResult{}, ErrInvalidSession
	}
	if sess.Status != StatusActive || sess.CodeActivatedAt == nil {
		return SubmitResult{}, ErrInvalidSession
	}
	now := s.now().UTC()
	if now.Sub(*sess.CodeActivatedAt) > s.selfieWindow {
		return SubmitResult{}, ErrWindowExpired
	}

	// Upload happens before the record insert so a retry after a partial
	// failure overwrites the stored image rather than duplicating it.
	var imageURL string
	if s.uploader != nil {
		imageURL, err = s.uploader.UploadSelfie(ctx, sess.ClassID, sess.ID, sub.StudentID, sub.ImageBase64)
		if err != nil {
			log.Printf("selfie upload failed for session %s: %v", sess.ID, err)
			return SubmitResult{}, fmt.Errorf("%w: selfie upload", ErrDependencyFailure)
		}
	}

	studentID := sub.StudentID
	recs := make([]Record, 0, 1+len(neighbors))
	recs = append(recs, Record{
		ID:                 uuid.NewString(),
		SessionID:          sess.ID,
		ClassID:            sess.ClassID,
		StudentID:          &studentID,
		RollNumber:         selfRoll,
		Status:             "present",
		VerificationStatus: VerificationPending,
		MarkedAt:           now,
	})
	for _, roll := range neighbors {
		recs = append(recs, Record{
			ID:                 uuid.NewString(),
			SessionID:          sess.ID,
			ClassID:            sess.ClassID,
			StudentID:          nil,
			RollNumber:         roll,
			Status:             "present",
			VerificationStatus: VerificationUnverified,
			MarkedAt:           now,
		})
	}
	if err := s.store.InsertRecords(ctx, recs); err != nil {
		return SubmitResult{}, err
	}

	result := SubmitResult{Records: recs, ImageURL: imageURL}
	if s.face != nil && s.syncVerify {
		rolls := append([]string{selfRoll}, neighbors...)
		verification, err := s.face.VerifyFace(ctx, sess.ClassID, sess.ID, imageURL, rolls)
		if err != nil {
			log.Printf("face verification failed for session %s: %v", sess.ID, err)
			_ = s.store.SetVerification(ctx, sess.ID, sub.StudentID, VerificationFailed)
			return result, nil
		}
		status := VerificationVerified
		if !VerificationAccepted(verification) {
			status = VerificationRejected
		}
		if err := s.store.SetVerification(ctx, sess.ID, sub.StudentID, status); err != nil {
			log.Printf("verification status update failed for session %s: %v", sess.ID, err)
		}
		result.Verification = verification
	}
	return result, nil
}

// RecordVerification stores the face service's outcome for a submission;
// used by the worker on the asynchronous path.
func (s *Service) RecordVerification(ctx context.Context, sessionID, studentID, status string) error {
	return s.store.SetVerification(ctx, sessionID, studentID, status)
}

// ListRecords returns the class's attendance, oldest first, with names
// resolved from the roster.
func (s *Service) ListRecords(ctx context.Context, classID string) ([]RecordView, error) {
	if strings.TrimSpace(classID) == "" {
		return nil, fmt.Errorf("%w: classId required", ErrValidation)
	}
	return s.store.ListRecords(ctx, classID)
}

// VerificationAccepted inspects the face service's opaque payload for the
// conventional verified/match flag. Unknown shapes count as accepted and
// are left to audit, matching the relay-only contract. Shared by the
// synchronous path and the worker so both classify payloads the same way.
func VerificationAccepted(payload json.RawMessage) bool {
	var out struct {
		Verified *bool `json:"verified"`
		Match    *bool `json:"match"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return true
	}
	if out.Verified != nil {
		return *out.Verified
	}
	if out.Match != nil {
		return *out.Match
	}
	return true
}
