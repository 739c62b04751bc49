package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MsgSuccess is the msg value of every successful response. Clients judge
// success by this field alone.
const MsgSuccess = "Success"

// Success sends {msg: "Success", value: data}.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"msg": MsgSuccess, "value": data})
}

// SuccessField sends {msg: "Success", <field>: data} for endpoints whose
// clients read a named collection field such as "appointments" or "doctors".
func SuccessField(c *gin.Context, field string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"msg": MsgSuccess, field: data})
}

// Created sends a standard resource created response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"msg": MsgSuccess, "value": data})
}

// Error sends {msg: errorMessage} with the given status.
func Error(c *gin.Context, statusCode int, errorMessage string) {
	c.JSON(statusCode, gin.H{"msg": errorMessage})
}

// BadRequest sends a 400 Bad Request error response.
func BadRequest(c *gin.Context, errorMessage string) {
	Error(c, http.StatusBadRequest, errorMessage)
}

// Unauthorized sends a 401 Unauthorized error response.
func Unauthorized(c *gin.Context, errorMessage string) {
	Error(c, http.StatusUnauthorized, errorMessage)
}

// Forbidden sends a 403 Forbidden error response.
func Forbidden(c *gin.Context, errorMessage string) {
	Error(c, http.StatusForbidden, errorMessage)
}

// NotFound sends a 404 Not Found error response.
func NotFound(c *gin.Context, errorMessage string) {
	Error(c, http.StatusNotFound, errorMessage)
}

// InternalServerError sends a 500 Internal Server Error response.
func InternalServerError(c *gin.Context, errorMessage string) {
	Error(c, http.StatusInternalServerError, errorMessage)
}
