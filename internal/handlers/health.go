package handlers

import (
	"context"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Health pings every registered backing service. Any failure turns the
// response into 503 with the failing components listed.
func Health(checks map[string]HealthCheck) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		components := gin.H{}
		healthy := true
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				log.Printf("[HEALTH] [WARN] %s: %v", name, err)
				components[name] = err.Error()
				healthy = false
				continue
			}
			components[name] = "ok"
		}

		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "components": components})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "components": components})
	}
}
