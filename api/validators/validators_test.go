package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Key  string `json:"key" validate:"required"`
	Link string `json:"link" validate:"omitempty,url"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"key":"abc","link":"https://example.com"}`))
	var got sample
	require.NoError(t, DecodeJSONBody(req, &got))
	assert.Equal(t, "abc", got.Key)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"key":"abc","extra":1}`))
	var got sample
	err := DecodeJSONBody(req, &got)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"link":"not a url"}`))
	var got sample
	err := DecodeJSONBody(req, &got)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Equal(t, "is required", details["key"])
	assert.Equal(t, "must be a valid URL", details["link"])
}

type roleChange struct {
	Role  string `json:"role" validate:"required,role"`
	Label string `json:"label" validate:"nonblank"`
	Count int    `json:"count"`
}

func decodeRoleChange(body string) error {
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body))
	var got roleChange
	return DecodeJSONBody(req, &got)
}

func TestDecodeJSONBodyDomainTags(t *testing.T) {
	require.NoError(t, decodeRoleChange(`{"role":"Basic User","label":"x"}`))

	err := decodeRoleChange(`{"role":"Pastor","label":"   "}`)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Equal(t, "must be one of Basic User, Admin, Super Admin", details["role"])
	assert.Equal(t, "is required", details["label"])
}

func TestDecodeJSONBodyReportsTypeMismatchByField(t *testing.T) {
	err := decodeRoleChange(`{"role":"Admin","label":"x","count":"three"}`)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]string{"count": "must be a number"}, pkgerrors.As(err).Details())
}

func TestDecodeJSONBodyRejectsEmptyTrailingAndOversized(t *testing.T) {
	err := decodeRoleChange(``)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())

	err = decodeRoleChange(`{"role":"Admin","label":"x"} {"role":"Admin"}`)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	huge := `{"role":"Admin","label":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	err = decodeRoleChange(huge)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeTooLarge))
}

func TestIfMatch(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/", nil)
	assert.Equal(t, "", IfMatch(req))
	req.Header.Set("If-Match", `W/"abc"`)
	assert.Equal(t, "abc", IfMatch(req))
	req.Header.Set("If-Match", "*")
	assert.Equal(t, "", IfMatch(req))
}

func TestPathAndQueryParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?transactionKey=%20tx1%20", nil)
	assert.Equal(t, "tx1", QueryParam(req, "transactionKey"))

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("key", "k1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	got, err := PathParam(req, "key")
	require.NoError(t, err)
	assert.Equal(t, "k1", got)

	_, err = PathParam(req, "missing")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	assert.Equal(t, "abc", SanitizeString("abc", 0))
	assert.Equal(t, "ab", SanitizeString("a\tb\n", 0))
	assert.Equal(t, "héé", SanitizeString("hééllo", 3))
}
