package server

import (
	"errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"net/http"
	"time"
	"worker-evaluation/constant"
	"worker-evaluation/dto"
	"worker-evaluation/entities"
	"worker-evaluation/pkg/snapshot"
	"worker-evaluation/repository"
	"worker-evaluation/service"
)

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}

func addMetrics(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func addEvaluationRoutes(r *gin.Engine, deps *Dependencies) {
	api := r.Group("/api")
	api.POST("/videos/:id/evaluate", evaluateVideo(deps))
	api.GET("/videos/:id", getVideo(deps))
	api.GET("/sessions/:id/evaluation", getSessionEvaluation(deps))
	api.POST("/admin/reset-failed", resetFailed(deps))
}

func videoFromParam(c *gin.Context, deps *Dependencies) (*entities.SessionVideo, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return nil, false
	}

	video, err := deps.Repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		return nil, false
	}
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to load video")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load video"})
		return nil, false
	}
	return video, true
}

// evaluateVideo is called by the upload service once a video record and file exist.
func evaluateVideo(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		video, ok := videoFromParam(c, deps)
		if !ok {
			return
		}
		if video.EvaluationStatus != constant.EvaluationStatusPending {
			c.JSON(http.StatusConflict, gin.H{"error": "video is not pending", "evaluationStatus": video.EvaluationStatus})
			return
		}

		deps.Pipeline.Trigger(service.NewRequest(video, deps.Uploads))
		c.JSON(http.StatusAccepted, gin.H{"id": video.ID, "evaluationStatus": "queued"})
	}
}

func getVideo(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		video, ok := videoFromParam(c, deps)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, dto.VideoStatusResponse{
			Id:               video.ID,
			SessionId:        video.SessionID,
			QuestionId:       video.QuestionID,
			Filename:         video.Filename,
			EvaluationStatus: video.EvaluationStatus.String(),
			Score:            video.Score,
		})
	}
}

func getSessionEvaluation(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}

		doc, err := deps.Snapshots.Load(c.Request.Context(), sessionID.String())
		if errors.Is(err, snapshot.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no evaluation for session"})
			return
		}
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to load session evaluation")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session evaluation"})
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// resetFailed returns failed videos to pending. ?stuck=<duration> also resets processing rows older than it.
func resetFailed(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stuck time.Duration
		if raw := c.Query("stuck"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stuck duration"})
				return
			}
			stuck = d
		}

		ctx := c.Request.Context()
		failed, err := deps.Repo.ResetFailed(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset videos"})
			return
		}
		resp := dto.ResetResponse{Failed: failed}
		if stuck > 0 {
			resp.Stuck, err = deps.Repo.ResetStuck(ctx, stuck)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset stuck videos"})
				return
			}
		}

		zerolog.Ctx(ctx).Info().Int64("failed", resp.Failed).Int64("stuck", resp.Stuck).Msg("videos reset to pending")
		c.JSON(http.StatusOK, resp)
	}
}
