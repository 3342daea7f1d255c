package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// LocationHeader points at a newly created analysis.
const LocationHeader = "Location"

// CORS lets browser clients on allowedOrigins submit analyses and read them
// back. The request ID and the Location of a created analysis are exposed so
// a client can correlate its request with the stored result.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader, LocationHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	})
}
