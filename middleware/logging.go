package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// Logging returns a logging middleware for HTTP requests
func Logging() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(params gin.LogFormatterParams) string {
		line := fmt.Sprintf("%s | %3d | %12v | %15s | %-7s %s\n",
			params.TimeStamp.Format(time.RFC3339),
			params.StatusCode,
			params.Latency,
			params.ClientIP,
			params.Method,
			params.Path,
		)
		if params.ErrorMessage != "" {
			line = line[:len(line)-1] + " | " + params.ErrorMessage + "\n"
		}
		return line
	})
}
