package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"document_notifier/internal/app"
	"document_notifier/internal/domain/contact"
	"document_notifier/internal/domain/document"
	"document_notifier/internal/infra/contacts"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeSearcher struct{ parties []document.Party }

func (f *fakeSearcher) SearchParties(_ context.Context, _ document.Kind, _ string) ([]document.Party, error) {
	return f.parties, nil
}

func setupTestServer(t *testing.T, searcher document.PartySearcher) http.Handler {
	t.Helper()
	repo := contacts.NewFileRepository(t.TempDir(), map[document.Kind]string{
		document.KindInvoice:       "customer_emails.json",
		document.KindPurchaseOrder: "vendor_emails.json",
	}, quietLog())
	s, err := NewServer(":0", testSecret, app.NewAdminService(repo, searcher), quietLog())
	require.NoError(t, err)
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	token, err := GenerateToken(testSecret, "ops", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewServer_RequiresSecret(t *testing.T) {
	_, err := NewServer(":0", "", nil, quietLog())
	assert.Error(t, err)
}

func TestAuth(t *testing.T) {
	h := setupTestServer(t, nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/mappings/invoice", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	t.Run("wrong secret", func(t *testing.T) {
		token, err := GenerateToken("other", "ops", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/mappings/invoice", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := GenerateToken(testSecret, "ops", -time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/mappings/invoice", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	h := setupTestServer(t, nil)

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestMappingsLifecycle(t *testing.T) {
	h := setupTestServer(t, nil)

	w := do(t, h, http.MethodPost, "/api/v1/mappings/po", saveMappingRequest{EntityID: " acme ", To: "a@x.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/v1/mappings/po", saveMappingRequest{EntityID: "ACME", To: "b@x.com, A@X.com", CC: "c@x.com"})
	require.Equal(t, http.StatusOK, w.Code)
	var view app.MappingView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, app.MappingView{EntityID: "ACME", To: "a@x.com, b@x.com", CC: "c@x.com"}, view)

	w = do(t, h, http.MethodGet, "/api/v1/mappings/po", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Mappings []app.MappingView `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, []app.MappingView{view}, list.Mappings)

	w = do(t, h, http.MethodDelete, "/api/v1/mappings/po/ACME", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v1/mappings/po/ACME", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveMapping_Validation(t *testing.T) {
	h := setupTestServer(t, nil)

	w := do(t, h, http.MethodPost, "/api/v1/mappings/invoice", saveMappingRequest{EntityID: "ACME"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/mappings/invoice", saveMappingRequest{To: "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/mappings/widgets", saveMappingRequest{EntityID: "ACME", To: "a@x.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGlobalCC(t *testing.T) {
	h := setupTestServer(t, nil)

	w := do(t, h, http.MethodPut, "/api/v1/global-cc/invoice", globalCCRequest{Value: " ar@us.com "})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/global-cc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cfg contact.GlobalCC
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, contact.GlobalCC{InvoiceCC: "ar@us.com"}, cfg)
}

func TestSearchParties(t *testing.T) {
	h := setupTestServer(t, nil)
	w := do(t, h, http.MethodGet, "/api/v1/parties/invoice?q=acme", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h = setupTestServer(t, &fakeSearcher{parties: []document.Party{{ID: "ACME", Name: "Acme Corp", Address: "ap@acme.com"}}})
	w = do(t, h, http.MethodGet, "/api/v1/parties/invoice?q=acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"parties":[{"id":"ACME","name":"Acme Corp","source_email":"ap@acme.com"}]}`, w.Body.String())
}
