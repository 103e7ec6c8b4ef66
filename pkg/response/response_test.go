package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func record(fn func(c *gin.Context)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	return w
}

func TestList_EmptySliceKeepsData(t *testing.T) {
	w := record(func(c *gin.Context) { List(c, []string{}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestFailureEnvelopes(t *testing.T) {
	for _, tc := range []struct {
		fn   func(*gin.Context, string)
		code int
	}{
		{BadRequest, http.StatusBadRequest},
		{Unauthorized, http.StatusUnauthorized},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{PayloadTooLarge, http.StatusRequestEntityTooLarge},
		{Internal, http.StatusInternalServerError},
	} {
		w := record(func(c *gin.Context) { tc.fn(c, "nope") })
		assert.Equal(t, tc.code, w.Code)
		assert.JSONEq(t, `{"success":false,"error":"nope"}`, w.Body.String())
	}
}

func TestAccepted(t *testing.T) {
	w := record(func(c *gin.Context) { Accepted(c, map[string]string{"id": "1"}) })
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"id":"1"}}`, w.Body.String())
}
