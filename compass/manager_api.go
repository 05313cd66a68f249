package compass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prave/ModelCompass/event"
	"github.com/prave/ModelCompass/hardware"
)

func (cm *CompassManager) addApiHandlers() {
	apiGroup := cm.ginEngine.Group("/api")
	{
		apiGroup.GET("/hardware", cm.apiGetHardware)
		apiGroup.POST("/hardware/refresh", cm.apiRefreshHardware)
		apiGroup.GET("/hardware/export", cm.apiExportHardware)

		apiGroup.GET("/models", cm.apiListModels)
		apiGroup.GET("/recommendations", cm.apiGetRecommendations)
		apiGroup.GET("/search", cm.apiSearchModels)

		apiGroup.GET("/queue", cm.apiGetQueue)
		apiGroup.DELETE("/queue/:position", cm.apiRemoveQueued)
		apiGroup.POST("/downloads", cm.apiEnqueueDownload)
		apiGroup.DELETE("/downloads/active", cm.apiCancelActive)

		apiGroup.GET("/settings", cm.apiGetSettings)
		apiGroup.POST("/settings", cm.apiUpdateSettings)
		apiGroup.PATCH("/settings", cm.apiPatchSettings)

		apiGroup.GET("/favorites", cm.apiGetFavorites)
		apiGroup.POST("/favorites/:name", cm.apiToggleFavorite)
		apiGroup.PUT("/favorites/:name/note", cm.apiSetNote)

		apiGroup.GET("/history", cm.apiGetHistory)
		apiGroup.GET("/tools", cm.apiGetTools)
		apiGroup.POST("/benchmark", cm.apiRunBenchmark)

		apiGroup.GET("/events", cm.apiSendEvents)
	}
}

func (cm *CompassManager) apiGetHardware(c *gin.Context) {
	profile := cm.Profile()
	tier, err := hardware.ClassifyTier(profile.VRAMGB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	maxGB, err := hardware.MaxModelGB(profile)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":    profile,
		"tier":       tier.String(),
		"tierLabel":  tier.Label(),
		"maxModelGB": maxGB,
	})
}

func (cm *CompassManager) apiRefreshHardware(c *gin.Context) {
	profile := cm.RefreshHardware()
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (cm *CompassManager) apiExportHardware(c *gin.Context) {
	c.String(http.StatusOK, cm.Profile().Export())
}

func (cm *CompassManager) apiListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": cm.catalog.Models()})
}

func (cm *CompassManager) apiGetRecommendations(c *gin.Context) {
	recommendations, err := cm.catalog.Recommend(cm.Profile())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if c.Query("fits") == "true" {
		filtered := recommendations[:0]
		for _, r := range recommendations {
			if r.Fits {
				filtered = append(filtered, r)
			}
		}
		recommendations = filtered
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recommendations})
}

func (cm *CompassManager) apiSearchModels(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	results, err := cm.hub.Search(query, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("search failed: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": results, "total": len(results)})
}

func (cm *CompassManager) apiGetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active": cm.scheduler.Active(),
		"queue":  cm.scheduler.Queue(),
		"count":  cm.scheduler.Count(),
	})
}

type enqueueRequest struct {
	Model          string `json:"model"`          // catalog name, or empty when repo/file given
	Repo           string `json:"repo"`           // direct repo download
	File           string `json:"file"`           //
	DestinationDir string `json:"destinationDir"` // optional, defaults to config download dir
}

func (cm *CompassManager) apiEnqueueDownload(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var descriptor ModelDescriptor
	if req.Model != "" {
		found, ok := cm.catalog.Find(req.Model)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown model: %s", req.Model)})
			return
		}
		descriptor = found
	} else {
		if req.Repo == "" || req.File == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "either model or repo+file is required"})
			return
		}
		descriptor = ModelDescriptor{
			Name:  formatModelName(req.Repo, req.File),
			Quant: extractQuantization(req.File),
			Repo:  req.Repo,
			File:  req.File,
		}
		// Best effort; capacity hints still work without a size
		if sizeGB, err := cm.hub.FileSizeGB(req.Repo, req.File); err == nil {
			descriptor.SizeGB = sizeGB
		}
	}

	if !descriptor.Downloadable() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": fmt.Sprintf("%s is a sharded release, pull it through your runtime instead", descriptor.Name),
		})
		return
	}

	destDir := req.DestinationDir
	if destDir == "" {
		destDir = cm.config.DownloadDir
	}
	destDir = filepath.Clean(destDir)

	if !cm.scheduler.Enqueue(QueueItem{Model: descriptor, DestinationDir: destDir}) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler is shut down"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"queued": descriptor.Name,
		"count":  cm.scheduler.Count(),
	})
}

func (cm *CompassManager) apiCancelActive(c *gin.Context) {
	if !cm.scheduler.CancelActive() {
		c.JSON(http.StatusConflict, gin.H{"error": "no active download"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (cm *CompassManager) apiRemoveQueued(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid queue position"})
		return
	}
	if !cm.scheduler.RemoveQueued(position) {
		c.JSON(http.StatusNotFound, gin.H{"error": "queue position out of range"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": position})
}

func (cm *CompassManager) apiGetSettings(c *gin.Context) {
	settings, err := cm.settings.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// never leak the stored token through the API
	settings.HuggingFaceApiKey = redactKey(settings.HuggingFaceApiKey)
	c.JSON(http.StatusOK, settings)
}

func (cm *CompassManager) apiUpdateSettings(c *gin.Context) {
	var settings Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := cm.settings.Save(settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

func (cm *CompassManager) apiPatchSettings(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	updated, err := cm.settings.Patch(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated.HuggingFaceApiKey = redactKey(updated.HuggingFaceApiKey)
	c.JSON(http.StatusOK, updated)
}

func (cm *CompassManager) apiGetFavorites(c *gin.Context) {
	favorites, err := cm.settings.Favorites()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, favorites)
}

func (cm *CompassManager) apiToggleFavorite(c *gin.Context) {
	fav, err := cm.settings.ToggleFavorite(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "fav": fav})
}

func (cm *CompassManager) apiSetNote(c *gin.Context) {
	var body struct {
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := cm.settings.SetNote(c.Param("name"), body.Note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

func (cm *CompassManager) apiGetHistory(c *gin.Context) {
	history, err := cm.settings.History()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": history})
}

func (cm *CompassManager) apiGetTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": DetectTools()})
}

func (cm *CompassManager) apiRunBenchmark(c *gin.Context) {
	var req struct {
		Model  string  `json:"model"`
		Prompt string  `json:"prompt"`
		SizeGB float64 `json:"sizeGB"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model is required"})
		return
	}

	result, err := cm.bench.Run(req.Model, req.Prompt)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if req.SizeGB > 0 {
		if err := cm.bench.Compare(result, cm.Profile(), req.SizeGB); err != nil {
			cm.logger.Warnf("Benchmark comparison failed: %v", err)
		}
	}
	c.JSON(http.StatusOK, result)
}

type messageEnvelope struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

const (
	msgTypeQueueStatus      = "queueStatus"
	msgTypeDownloadProgress = "downloadProgress"
	msgTypeLogData          = "logData"
)

func (cm *CompassManager) apiSendEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Content-Type-Options", "nosniff")
	// prevent nginx from buffering SSE
	c.Header("X-Accel-Buffering", "no")

	sendBuffer := make(chan messageEnvelope, 25)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	send := func(msgType string, payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		select {
		case sendBuffer <- messageEnvelope{Type: msgType, Data: string(data)}:
		case <-ctx.Done():
		default:
		}
	}

	sendQueue := func() {
		send(msgTypeQueueStatus, gin.H{
			"active": cm.scheduler.Active(),
			"queue":  cm.scheduler.Queue(),
			"count":  cm.scheduler.Count(),
		})
	}

	defer event.On(func(e QueueChangedEvent) {
		sendQueue()
	})()
	defer event.On(func(e DownloadStartedEvent) {
		send("downloadStarted", gin.H{"model": e.Item.Model.Name})
	})()
	defer event.On(func(e DownloadProgressEvent) {
		send(msgTypeDownloadProgress, gin.H{
			"model":   e.Item.Model.Name,
			"percent": e.Percent,
			"bytes":   e.BytesDownloaded,
			"total":   e.TotalBytes,
			"speed":   e.SpeedBPS,
		})
	})()
	defer event.On(func(e DownloadFinishedEvent) {
		send("downloadFinished", gin.H{"model": e.Item.Model.Name, "path": e.Path})
	})()
	defer event.On(func(e DownloadFailedEvent) {
		send("downloadFailed", gin.H{"model": e.Item.Model.Name, "error": e.Error})
	})()
	defer event.On(func(e ToolIntegrationEvent) {
		send("toolIntegration", gin.H{
			"tool":    e.Tool,
			"op":      e.Op,
			"model":   e.Model,
			"ok":      e.OK,
			"message": e.Message,
		})
	})()
	defer event.On(func(e HardwareRefreshedEvent) {
		send("hardwareRefreshed", gin.H{"profile": cm.Profile()})
	})()
	defer cm.logger.OnLogData(func(data []byte) {
		send(msgTypeLogData, gin.H{"source": "compass", "data": string(data)})
	})()

	// send initial batch of data
	send(msgTypeLogData, gin.H{"source": "compass", "data": string(cm.logger.GetHistory())})
	sendQueue()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-cm.shutdownCtx.Done():
			return
		case msg := <-sendBuffer:
			c.SSEvent("message", msg)
			c.Writer.Flush()
		}
	}
}

func redactKey(key string) string {
	if len(key) <= 8 {
		if key == "" {
			return ""
		}
		return "********"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
