package easydoc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDocumentSendsEnvelope(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DocumentActionPath, r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, "retry-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"doc-1","name":"contract.pdf","status":"pending","flowActions":[]},"cached":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithToken("token-1"))
	document, result, err := client.CreateDocument(context.Background(), &CreateDocumentInput{
		FileName:       "contract.pdf",
		Content:        []byte("ABC"),
		Signers:        []Signer{{Name: "Ana", Email: "ana@example.com"}},
		IdempotencyKey: "retry-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "doc-1", document.ID)
	assert.True(t, *result.Cached)
	assert.True(t, result.Replayed)
	assert.Equal(t, "create", received["action"])
	assert.Equal(t, "QUJD", received["fileContent"])
	assert.NotContains(t, received, "description")
}

func TestListDocumentsReportsCacheFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "list", body["action"])
		assert.Equal(t, float64(10), body["limit"])
		assert.NotContains(t, body, "offset")

		w.Write([]byte(`{"data":{"items":[{"id":"doc-1","status":"completed"}],"totalCount":1},"fromCache":true}`))
	}))
	defer server.Close()

	page, result, err := NewClient(server.URL).ListDocuments(context.Background(), 10, 0)

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "completed", page.Items[0].Status)
	assert.True(t, result.ServedFromCache())
	assert.False(t, result.Replayed)
}

func TestActionErrorIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"document limit reached","code":"lifetime_limit_reached","status":403,"timestamp":"2026-01-02T03:04:05Z"}`))
	}))
	defer server.Close()

	_, _, err := NewClient(server.URL).GetDocument(context.Background(), "doc-1")

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "lifetime_limit_reached", apiErr.Code)
}

func TestNonJSONErrorKeepsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	err := NewClient(server.URL).DeleteDocument(context.Background(), "doc-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestGetUsageUsesManagementPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tenant/usage", r.URL.Path)
		w.Write([]byte(`{"plan":{"tier":"basic","price":"29.9"},"documents":{"used":17,"limit":20,"remaining":3,"near_limit":true,"allowed":true},"seats":{"used":1,"limit":2,"remaining":1,"can_add":true}}`))
	}))
	defer server.Close()

	usage, err := NewClient(server.URL).GetUsage(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "basic", usage.Plan.Tier)
	assert.True(t, usage.Documents.NearLimit)
	assert.Equal(t, 1, usage.Seats.Remaining)
}
