package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS returns a configured CORS middleware. A "*" entry allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	for _, origin := range origins {
		if origin == "*" {
			config.AllowAllOrigins = true
			break
		}
	}
	if !config.AllowAllOrigins {
		config.AllowOrigins = origins
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Range"}
	config.ExposeHeaders = []string{"Content-Disposition", "Content-Range"}

	return cors.New(config)
}
