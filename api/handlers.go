package api

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/sawit-ai/go-grading/datastore"
	"github.com/sawit-ai/go-grading/inference"
)

// historyLimitCap bounds a single history query regardless of the requested
// limit.
const historyLimitCap = 500

// defaultHistoryLimit applies when the query omits limit.
const defaultHistoryLimit = 100

type runRequest struct {
	// Image is the encoded image, raw base64 or a data URI.
	Image string `json:"image"`
	// ImageURL is an optional reference stored with the history record.
	ImageURL string `json:"image_url"`
	UserID   *uint  `json:"user_id"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type userResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModelStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.runner.Status())
}

func (s *Server) handleModelRun(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Image == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "image is required"})
	}

	// Undecodable base64 flows through as an undecodable image; the
	// pipeline reports it in the result rather than as a request error.
	data, err := decodeImageField(req.Image)
	if err != nil {
		data = nil
	}

	result, err := s.runner.Process(data)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	s.recordRun(&req, result)
	return c.JSON(http.StatusOK, result)
}

// decodeImageField accepts raw base64 or a data URI ("data:image/...;base64,").
func decodeImageField(field string) ([]byte, error) {
	if idx := strings.Index(field, "base64,"); idx >= 0 {
		field = field[idx+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(field)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64 image")
	}
	return data, nil
}

// recordRun persists the run best-effort; a storage failure never fails the
// inference response.
func (s *Server) recordRun(req *runRequest, result *inference.Result) {
	if s.store == nil {
		return
	}

	predictions, err := json.Marshal(result.Predictions)
	if err != nil {
		predictions = []byte("[]")
	}

	imageRef := req.ImageURL
	if imageRef == "" {
		imageRef = req.Image
	}

	rec := &datastore.GradingHistory{
		UserID:      req.UserID,
		ImageURL:    imageRef,
		Predictions: string(predictions),
		TopClass:    result.Label,
		Confidence:  float64(result.Confidence),
		InferenceMs: result.ElapsedMs,
	}
	if err := s.store.SaveGrading(rec); err != nil {
		log.Printf("⚠️ Failed to save grading record: %v", err)
	}
}

func (s *Server) handleRegister(c echo.Context) error {
	if s.store == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "datastore disabled"})
	}

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "username and password are required"})
	}

	user, err := s.store.CreateUser(req.Username, req.Password, req.FullName)
	if err != nil {
		if errors.Is(err, datastore.ErrUserExists) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "username already exists"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "registration failed"})
	}

	return c.JSON(http.StatusCreated, userResponse{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Role:     user.Role,
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	if s.store == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "datastore disabled"})
	}

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	user, err := s.store.VerifyUser(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, datastore.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid username or password"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "login failed"})
	}

	return c.JSON(http.StatusOK, userResponse{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Role:     user.Role,
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.store == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "datastore disabled"})
	}

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}
	if limit > historyLimitCap {
		limit = historyLimitCap
	}

	var userID *uint
	if raw := c.QueryParam("user_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user_id"})
		}
		id := uint(n)
		userID = &id
	}

	records, err := s.store.History(userID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "history query failed"})
	}
	return c.JSON(http.StatusOK, records)
}
