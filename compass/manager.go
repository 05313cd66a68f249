package compass

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prave/ModelCompass/event"
	"github.com/prave/ModelCompass/hardware"
)

// CompassManager composes the daemon: hardware profile, capacity-driven
// catalog, download scheduler, tool bridges and the HTTP API on top.
type CompassManager struct {
	sync.Mutex

	config    Config
	ginEngine *gin.Engine

	logger *LogMonitor

	profile   hardware.Profile
	catalog   *Catalog
	scheduler *DownloadScheduler
	settings  *SettingsStore
	hub       *HubClient
	bench     *BenchmarkRunner

	// shutdown signaling
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc

	// subscription cancellers for history recording
	historySubCancels []func()
}

func New(config Config) *CompassManager {
	logger := NewLogMonitorWriter(os.Stdout)

	switch strings.ToLower(strings.TrimSpace(config.LogLevel)) {
	case "debug":
		logger.SetLogLevel(LevelDebug)
	case "info":
		logger.SetLogLevel(LevelInfo)
	case "warn":
		logger.SetLogLevel(LevelWarn)
	case "error":
		logger.SetLogLevel(LevelError)
	default:
		logger.SetLogLevel(LevelInfo)
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	settings := NewSettingsStore(config.DataDir)
	stored, err := settings.Load()
	if err != nil {
		logger.Warnf("Failed to load settings: %v", err)
		stored = defaultSettings()
	}

	catalog, err := LoadCatalog(config.CatalogPath)
	if err != nil {
		logger.Warnf("Failed to load catalog override, using built-in: %v", err)
		catalog = NewCatalog()
	}

	hub := &HubClient{APIKey: stored.HuggingFaceApiKey}
	runner := &HTTPTransferRunner{APIKey: stored.HuggingFaceApiKey, Logger: logger}
	scheduler := NewDownloadScheduler(runner, logger)

	cm := &CompassManager{
		config:    config,
		ginEngine: gin.New(),

		logger: logger,

		catalog:   catalog,
		scheduler: scheduler,
		settings:  settings,
		hub:       hub,
		bench:     &BenchmarkRunner{BaseURL: config.BenchmarkURL, Logger: logger},

		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	logger.Info("Detecting hardware...")
	cm.profile = hardware.Detect()
	logger.Infof("Detected: %s, %.1f GB RAM, %s (%.1f GB VRAM, ~%d GB/s)",
		cm.profile.CPUName, cm.profile.RAMGB, cm.profile.GPUName,
		cm.profile.VRAMGB, cm.profile.MemoryBandwidthGBs)

	if stored.AutoIntegrate {
		if config.IntegrateOllama {
			scheduler.RegisterBridge(&OllamaBridge{Logger: logger})
		}
		if config.IntegrateLMStudio {
			scheduler.RegisterBridge(&LMStudioBridge{Logger: logger})
		}
	}

	cm.setupGinEngine()

	// record transfer outcomes into history.json
	cm.historySubCancels = append(cm.historySubCancels,
		event.On(func(e DownloadFinishedEvent) {
			entry := HistoryEntry{
				Model:     e.Item.Model.Name,
				Repo:      e.Item.Model.Repo,
				Path:      e.Path,
				Status:    string(StatusDone),
				Timestamp: time.Now(),
			}
			if err := cm.settings.AppendHistory(entry); err != nil {
				cm.logger.Warnf("Failed to record history: %v", err)
			}
		}),
		event.On(func(e DownloadFailedEvent) {
			entry := HistoryEntry{
				Model:     e.Item.Model.Name,
				Repo:      e.Item.Model.Repo,
				Status:    string(StatusError),
				Error:     e.Error,
				Timestamp: time.Now(),
			}
			if err := cm.settings.AppendHistory(entry); err != nil {
				cm.logger.Warnf("Failed to record history: %v", err)
			}
		}),
	)

	return cm
}

func (cm *CompassManager) setupGinEngine() {
	cm.ginEngine.Use(func(c *gin.Context) {
		start := time.Now()
		clientIP := c.ClientIP()
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		cm.logger.Infof("Request %s \"%s %s %s\" %d %d \"%s\" %v",
			clientIP,
			method,
			path,
			c.Request.Proto,
			c.Writer.Status(),
			c.Writer.Size(),
			c.Request.UserAgent(),
			duration,
		)
	})

	// respond with permissive OPTIONS for any endpoint
	cm.ginEngine.Use(func(c *gin.Context) {
		if c.Request.Method == "OPTIONS" {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if headers := c.Request.Header.Get("Access-Control-Request-Headers"); headers != "" {
				c.Header("Access-Control-Allow-Headers", headers)
			} else {
				c.Header(
					"Access-Control-Allow-Headers",
					"Content-Type, Authorization, Accept, X-Requested-With",
				)
			}
			c.Header("Access-Control-Max-Age", "86400")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	cm.ginEngine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	cm.addApiHandlers()
}

// Profile returns the current hardware snapshot.
func (cm *CompassManager) Profile() hardware.Profile {
	cm.Lock()
	defer cm.Unlock()
	return cm.profile
}

// RefreshHardware re-probes the machine and atomically replaces the profile
// snapshot.
func (cm *CompassManager) RefreshHardware() hardware.Profile {
	profile := hardware.Detect()

	cm.Lock()
	cm.profile = profile
	cm.Unlock()

	cm.logger.Infof("Hardware refreshed: %s (%.1f GB VRAM)", profile.GPUName, profile.VRAMGB)
	event.Emit(HardwareRefreshedEvent{})
	return profile
}

// Scheduler exposes the download scheduler for CLI embedding.
func (cm *CompassManager) Scheduler() *DownloadScheduler {
	return cm.scheduler
}

// Catalog exposes the model catalog.
func (cm *CompassManager) Catalog() *Catalog {
	return cm.catalog
}

// Run serves the HTTP API until Shutdown is called.
func (cm *CompassManager) Run() error {
	server := &http.Server{
		Addr:    cm.config.Listen,
		Handler: cm.ginEngine,
	}

	go func() {
		<-cm.shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	cm.logger.Infof("Listening on %s", cm.config.Listen)
	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the scheduler and the HTTP server.
func (cm *CompassManager) Shutdown() {
	cm.logger.Info("Shutting down...")
	for _, cancel := range cm.historySubCancels {
		cancel()
	}
	cm.scheduler.Shutdown()
	cm.shutdownCancel()
}
