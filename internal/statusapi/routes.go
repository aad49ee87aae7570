package statusapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures the three routes SPEC_FULL.md names for this
// surface: a health check, the job list, and a single job's snapshot.
func SetupRoutes(r *gin.Engine, registry *Registry) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	jobs := r.Group("/jobs")
	{
		jobs.GET("", HandleListJobs(registry))
		jobs.GET("/:id", HandleGetJob(registry))
	}
}

// GetJobsResponse is the /jobs list response body.
type GetJobsResponse struct {
	Jobs []JobSnapshot `json:"jobs"`
}

func HandleListJobs(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, GetJobsResponse{Jobs: registry.List()})
	}
}

func HandleGetJob(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		snap, ok := registry.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}
