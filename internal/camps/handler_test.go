package camps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcamp-hub/backend/internal/middleware"
	"github.com/medcamp-hub/backend/pkg/docstore"
)

type fakeImages struct {
	uploaded map[string]string
	err      error
}

func (f *fakeImages) UploadImage(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	f.uploaded[key] = contentType
	return "https://bucket/" + key, nil
}

func (f *fakeImages) PresignImageUpload(_ context.Context, key, _ string) (string, string, error) {
	return "https://signed/" + key, "https://bucket/" + key, f.err
}

func newRouter(images ImageStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewRegistry(docstore.NewMemory()), images, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserEmail, "Org@X.com")
		c.Next()
	})
	r.GET("/camps", h.List)
	r.GET("/camps/:id", h.GetByID)
	r.POST("/camps", h.Create)
	r.PUT("/camps/:id", h.Update)
	r.DELETE("/camps/:id", h.Delete)
	r.POST("/camps/:id/reconcile", h.Reconcile)
	r.POST("/camps/images", h.UploadImage)
	r.POST("/camps/images/upload-url", h.ImageUploadURL)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestCampCRUD(t *testing.T) {
	r := newRouter(nil)

	w := do(r, http.MethodPost, "/camps", `{"title":"Health Camp","date":"2024-01-01","time":"10:00","images":["x.png"],"fees":25}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		InsertedID string `json:"insertedId"`
		Camp       struct {
			ParticipantCount int64  `json:"participant_count"`
			OrganizerEmail   string `json:"organizerEmail"`
		} `json:"camp"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.NotEmpty(t, created.InsertedID)
	assert.Equal(t, int64(0), created.Camp.ParticipantCount)
	assert.Equal(t, "org@x.com", created.Camp.OrganizerEmail)

	w = do(r, http.MethodGet, "/camps/"+created.InsertedID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPut, "/camps/"+created.InsertedID, `{"location":"Dhaka"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(decode(t, w).Data), `"location":"Dhaka"`)

	w = do(r, http.MethodPut, "/camps/ghost", `{"location":"Dhaka"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	w = do(r, http.MethodGet, "/camps/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/camps/"+created.InsertedID+"/reconcile", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"participant_count":0`)

	w = do(r, http.MethodDelete, "/camps/"+created.InsertedID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/camps/"+created.InsertedID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode(t, w).Success)
}

func TestCreateCampRejectsMissingFields(t *testing.T) {
	r := newRouter(nil)
	for _, body := range []string{
		`{"date":"2024-01-01","time":"10:00","images":["x.png"]}`,
		`{"title":"A","date":"2024-01-01","time":"10:00","images":[]}`,
		`not json`,
	} {
		w := do(r, http.MethodPost, "/camps", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func multipartImage(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	images := &fakeImages{uploaded: map[string]string{}}
	r := newRouter(images)

	body, ct := multipartImage(t, "photo.PNG", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/camps/images", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, images.uploaded, 1)
	for key, contentType := range images.uploaded {
		assert.True(t, strings.HasPrefix(key, "camps/"))
		assert.True(t, strings.HasSuffix(key, ".png"))
		assert.Equal(t, "image/png", contentType)
	}

	body, ct = multipartImage(t, "notes.txt", []byte("hello"))
	req = httptest.NewRequest(http.MethodPost, "/camps/images", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImageEndpointsWithoutStorage(t *testing.T) {
	r := newRouter(nil)
	w := do(r, http.MethodPost, "/camps/images/upload-url", `{"filename":"a.png"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestImageUploadURLHidesStorageErrors(t *testing.T) {
	r := newRouter(&fakeImages{err: errors.New("AccessDenied: secret detail")})
	w := do(r, http.MethodPost, "/camps/images/upload-url", `{"filename":"a.jpg"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret detail")

	r = newRouter(&fakeImages{uploaded: map[string]string{}})
	w = do(r, http.MethodPost, "/camps/images/upload-url", `{"filename":"a.jpg"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), `"content_type":"image/jpeg"`)
}
