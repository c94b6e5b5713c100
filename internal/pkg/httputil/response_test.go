package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProblem(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound(rec)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	var p Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Resource Not Found", p.Title)
	assert.Equal(t, 404, p.Status)
	assert.Equal(t, ProblemType, p.Type)
}

func TestDecode(t *testing.T) {
	var dst struct{ Email string }
	rec := httptest.NewRecorder()
	ok := Decode(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"email":"a@x.com"}`)), &dst)
	assert.True(t, ok)
	assert.Equal(t, "a@x.com", dst.Email)

	rec = httptest.NewRecorder()
	ok = Decode(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{`)), &dst)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid Resource")
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"total_items": 2})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_items":2}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
