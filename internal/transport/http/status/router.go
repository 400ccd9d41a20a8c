package status

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func registerRoutes(group *gin.RouterGroup, cfg ServerConfig) {
	group.GET("/status", func(c *gin.Context) {
		payload := gin.H{
			"instance_id": cfg.InstanceID,
			"failover":    cfg.Orchestrator.Metrics(),
			"recovery":    cfg.Recovery.Metrics(),
		}
		if cfg.Sync != nil {
			payload["sync"] = cfg.Sync.Metrics()
		}
		if cfg.Checker != nil {
			payload["consistency"] = cfg.Checker.Metrics()
		}
		c.JSON(http.StatusOK, payload)
	})

	group.GET("/recovery/:instance", func(c *gin.Context) {
		c.JSON(http.StatusOK, cfg.Recovery.GetRecoveryStatus(c.Param("instance")))
	})

	group.POST("/recovery/:instance/stop", func(c *gin.Context) {
		instance := c.Param("instance")
		if !cfg.Recovery.Recovering(instance) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no recovery in progress"})
			return
		}
		cfg.Recovery.StopRecovery(instance)
		c.JSON(http.StatusOK, gin.H{"stopped": instance})
	})

	if cfg.Sync != nil {
		group.POST("/sync/run", func(c *gin.Context) {
			found, err := cfg.Sync.SyncNow(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "discrepancies": len(found)})
				return
			}
			c.JSON(http.StatusOK, gin.H{"discrepancies": found})
		})
	}

	if cfg.Checker != nil {
		group.POST("/consistency/run", func(c *gin.Context) {
			processed, err := cfg.Checker.CheckNow(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "processed": len(processed)})
				return
			}
			c.JSON(http.StatusOK, gin.H{"processed": processed})
		})
	}

	if cfg.Audit != nil {
		group.GET("/audit/events", func(c *gin.Context) {
			rows, err := cfg.Audit.RecentEvents(c.Request.Context(), queryLimit(c))
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"events": rows})
		})
		group.GET("/audit/discrepancies", func(c *gin.Context) {
			rows, err := cfg.Audit.RecentDiscrepancies(c.Request.Context(), queryLimit(c))
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"discrepancies": rows})
		})
	}
}
