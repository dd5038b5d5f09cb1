package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Success bodies: {statusCode, success, message, data}. Error bodies: {success:false, message}.

func JSONSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"statusCode": status,
		"success":    true,
		"message":    message,
		"data":       data,
	})
}

func JSON200(c *gin.Context, message string, data interface{}) {
	JSONSuccess(c, http.StatusOK, message, data)
}

func JSON201(c *gin.Context, message string, data interface{}) {
	JSONSuccess(c, http.StatusCreated, message, data)
}

func JSONError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

func JSON400(c *gin.Context, message string) { JSONError(c, http.StatusBadRequest, message) }
func JSON403(c *gin.Context, message string) { JSONError(c, http.StatusForbidden, message) }
func JSON404(c *gin.Context, message string) { JSONError(c, http.StatusNotFound, message) }
func JSON410(c *gin.Context, message string) { JSONError(c, http.StatusGone, message) }
func JSON413(c *gin.Context, message string) { JSONError(c, http.StatusRequestEntityTooLarge, message) }
func JSON500(c *gin.Context, message string) { JSONError(c, http.StatusInternalServerError, message) }

// JSON429 also tells the client how many seconds to wait.
func JSON429(c *gin.Context, message string, retryAfterSeconds int64) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"success":    false,
		"message":    message,
		"retryAfter": retryAfterSeconds,
	})
}

// JSONErrorWithDetails adds one extra field next to the message, e.g. the
// per-file reasons of a rejected bulk upload.
func JSONErrorWithDetails(c *gin.Context, status int, message, key string, details interface{}) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
		key:       details,
	})
}
