// Package response writes the {success, data, error} envelope every endpoint returns.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the response envelope. Data is omitted on failures.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// listBody keeps "data" present for empty lists so clients always get an array.
type listBody struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// OK sends 200 with a single resource, e.g. one video record.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// List sends 200 with a collection. items must be a non-nil slice.
func List(c *gin.Context, items interface{}) {
	c.JSON(http.StatusOK, listBody{Success: true, Data: items})
}

// Created sends 201, used for new accounts.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Accepted sends 202: the video is stored and transcription continues in the background.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Body{Success: true, Data: data})
}

// Fail sends an error envelope with the given status.
func Fail(c *gin.Context, status int, err string) {
	c.JSON(status, Body{Success: false, Error: err})
}

// BadRequest sends 400, e.g. a missing file field or an unsupported video type.
func BadRequest(c *gin.Context, err string) { Fail(c, http.StatusBadRequest, err) }

// Unauthorized sends 401 for missing or invalid credentials.
func Unauthorized(c *gin.Context, err string) { Fail(c, http.StatusUnauthorized, err) }

// NotFound sends 404.
func NotFound(c *gin.Context, err string) { Fail(c, http.StatusNotFound, err) }

// Conflict sends 409 when an email is already registered.
func Conflict(c *gin.Context, err string) { Fail(c, http.StatusConflict, err) }

// PayloadTooLarge sends 413 for uploads over the size ceiling.
func PayloadTooLarge(c *gin.Context, err string) { Fail(c, http.StatusRequestEntityTooLarge, err) }

// Internal sends 500.
func Internal(c *gin.Context, err string) { Fail(c, http.StatusInternalServerError, err) }
