package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"facerag/internal/api/handlers"
	"facerag/internal/api/middleware"
	"facerag/internal/core/enrollment"
	"facerag/internal/core/models"
	"facerag/internal/core/recognition"
	"facerag/internal/rag"
	"facerag/internal/util/imageutil"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubEnroller struct {
	err      error
	gotName  string
	gotImage string
}

func (s *stubEnroller) Register(_ context.Context, name, payload string) (*enrollment.Result, error) {
	s.gotName, s.gotImage = name, payload
	if s.err != nil {
		return nil, s.err
	}
	return &enrollment.Result{Record: &models.FaceRecord{ID: 1, Name: name}}, nil
}

type stubRecognizer struct {
	results []recognition.FaceResult
	err     error
}

func (s *stubRecognizer) Recognize(context.Context, string) ([]recognition.FaceResult, error) {
	return s.results, s.err
}

type stubAnswerer struct {
	answer string
	err    error
}

func (s *stubAnswerer) Ask(_ context.Context, question string) (*rag.Answer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &rag.Answer{Text: s.answer}, nil
}

func newRouter(t *testing.T, enroller handlers.Enroller, recognizer handlers.Recognizer, answerer handlers.Answerer) *gin.Engine {
	t.Helper()
	translator, err := middleware.NewTranslator("en")
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(sessions.Sessions("facerag", cookie.NewStore([]byte("test-secret"))))
	r.Use(middleware.I18n(translator))
	handlers.NewFaceHandler(enroller, recognizer).RegisterRoutes(r)
	handlers.NewQueryHandler(answerer).RegisterRoutes(r)
	return r
}

func post(t *testing.T, r http.Handler, path, body string, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func TestRegister(t *testing.T) {
	enroller := &stubEnroller{}
	r := newRouter(t, enroller, &stubRecognizer{}, &stubAnswerer{})

	code, resp := post(t, r, "/register", `{"name":"Alice","image":"data:image/png;base64,AAAA"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Face for Alice registered and model updated successfully", resp["message"])
	assert.Equal(t, "Alice", enroller.gotName)
	assert.Equal(t, "data:image/png;base64,AAAA", enroller.gotImage)
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"missing input", enrollment.ErrMissingInput, http.StatusBadRequest, "Name and image are required"},
		{"invalid image", fmt.Errorf("decode: %w", imageutil.ErrInvalidImage), http.StatusBadRequest, "Invalid image"},
		{"no face", enrollment.ErrNoFaceDetected, http.StatusBadRequest, "No face detected"},
		{"internal", errors.New("disk full"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, &stubEnroller{err: tt.err}, &stubRecognizer{}, &stubAnswerer{})
			code, resp := post(t, r, "/register", `{"name":"Alice","image":"AAAA"}`)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.message, resp["error"])
			assert.NotContains(t, resp["error"], "disk full")
		})
	}
}

func TestRegister_MalformedBody(t *testing.T) {
	r := newRouter(t, &stubEnroller{}, &stubRecognizer{}, &stubAnswerer{})
	code, resp := post(t, r, "/register", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Name and image are required", resp["error"])
}

func TestRegister_German(t *testing.T) {
	r := newRouter(t, &stubEnroller{err: enrollment.ErrNoFaceDetected}, &stubRecognizer{}, &stubAnswerer{})
	code, resp := post(t, r, "/register", `{"name":"Alice","image":"AAAA"}`, "Accept-Language", "de-DE")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Kein Gesicht erkannt", resp["error"])
}

func TestRecognize(t *testing.T) {
	recognizer := &stubRecognizer{results: []recognition.FaceResult{
		{Name: "Alice", Top: 10, Right: 50, Bottom: 40, Left: 20, Distance: 12.5},
		{Name: recognition.UnknownName, Top: 5, Right: 15, Bottom: 15, Left: 5},
	}}
	r := newRouter(t, &stubEnroller{}, recognizer, &stubAnswerer{})

	code, resp := post(t, r, "/recognize", `{"image":"AAAA"}`)
	require.Equal(t, http.StatusOK, code)

	results, ok := resp["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 2)

	first := results[0].(map[string]interface{})
	assert.Equal(t, "Alice", first["name"])
	assert.EqualValues(t, 10, first["top"])
	assert.EqualValues(t, 50, first["right"])
	assert.EqualValues(t, 40, first["bottom"])
	assert.EqualValues(t, 20, first["left"])
	assert.NotContains(t, first, "distance")
	assert.Equal(t, "Unknown", results[1].(map[string]interface{})["name"])
}

func TestRecognize_EmptyResultIsArray(t *testing.T) {
	r := newRouter(t, &stubEnroller{}, &stubRecognizer{results: []recognition.FaceResult{}}, &stubAnswerer{})
	code, resp := post(t, r, "/recognize", `{"image":"AAAA"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{}, resp["results"])
}

func TestRecognize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"missing image", recognition.ErrMissingImage, http.StatusBadRequest, "No image provided"},
		{"undecodable", imageutil.ErrInvalidImage, http.StatusBadRequest, "Could not decode image"},
		{"internal", errors.New("detector crashed"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, &stubEnroller{}, &stubRecognizer{err: tt.err}, &stubAnswerer{})
			code, resp := post(t, r, "/recognize", `{"image":"AAAA"}`)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.message, resp["error"])
		})
	}
}

func TestQuery(t *testing.T) {
	r := newRouter(t, &stubEnroller{}, &stubRecognizer{}, &stubAnswerer{answer: "Alice registered on 2024-01-01."})
	code, resp := post(t, r, "/query", `{"question":"When did Alice register?"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Alice registered on 2024-01-01.", resp["answer"])
}

func TestQuery_Errors(t *testing.T) {
	r := newRouter(t, &stubEnroller{}, &stubRecognizer{}, &stubAnswerer{err: rag.ErrEmptyQuestion})
	code, resp := post(t, r, "/query", `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No question provided", resp["error"])

	r = newRouter(t, &stubEnroller{}, &stubRecognizer{}, &stubAnswerer{err: errors.New("embedding service unreachable")})
	code, resp = post(t, r, "/query", `{"question":"Who?"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "embedding service unreachable", resp["error"])
}
