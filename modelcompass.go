package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"

	"github.com/prave/ModelCompass/compass"
	"github.com/prave/ModelCompass/event"
)

var (
	version string = "0"
	commit  string = "abcd1234"
	date    string = "unknown"
)

func main() {
	configPath := flag.String("config", "modelcompass.yaml", "config file name")
	listenStr := flag.String("listen", "", "listen ip/port, overrides the config file")
	showVersion := flag.Bool("version", false, "show version of build")
	watchConfig := flag.Bool("watch-config", true, "Automatically reload config file on change (default: true)")
	hfToken := flag.String("hf-token", "", "Hugging Face API token for downloading gated models")

	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s (%s), built at %s\n", version, commit, date)
		os.Exit(0)
	}

	// Ensure the config file exists; write the defaults if missing
	if _, statErr := os.Stat(*configPath); statErr != nil {
		if os.IsNotExist(statErr) {
			if err := os.MkdirAll(filepath.Dir(*configPath), 0755); err != nil {
				fmt.Printf("Error creating config directory: %v\n", err)
				os.Exit(1)
			}
			if err := compass.DefaultConfig().Save(*configPath); err != nil {
				fmt.Printf("Error creating default config file: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Created default config at %s\n", *configPath)
		} else {
			fmt.Printf("Error checking config file: %v\n", statErr)
			os.Exit(1)
		}
	}

	loadConfig := func() (compass.Config, error) {
		config, err := compass.LoadConfig(*configPath)
		if err != nil {
			return config, err
		}
		if *listenStr != "" {
			config.Listen = *listenStr
		}
		return config, nil
	}

	config, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Persist a token passed on the command line before the manager reads it
	if *hfToken != "" {
		store := compass.NewSettingsStore(config.DataDir)
		settings, err := store.Load()
		if err == nil {
			settings.HuggingFaceApiKey = *hfToken
			err = store.Save(settings)
		}
		if err != nil {
			fmt.Printf("Warning: failed to store HF token: %v\n", err)
		}
	}

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	exitChan := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// cm is swapped by the reload goroutine and read by the signal handler
	var cmMu sync.Mutex
	cm := compass.New(config)

	serve := func(cm *compass.CompassManager) {
		go func() {
			if err := cm.Run(); err != nil {
				log.Fatalf("Fatal server error: %v\n", err)
			}
		}()
	}
	serve(cm)

	reloadManager := func() {
		newConfig, err := loadConfig()
		if err != nil {
			fmt.Printf("Warning, unable to reload configuration: %v\n", err)
			return
		}
		fmt.Println("Configuration file changed - reloading...")
		cmMu.Lock()
		cm.Shutdown()
		cm = compass.New(newConfig)
		serve(cm)
		cmMu.Unlock()
		fmt.Println("Configuration reloaded successfully")
	}
	debouncedReload := debounce(time.Second, reloadManager)

	if *watchConfig {
		defer event.On(func(e compass.ConfigFileChangedEvent) {
			debouncedReload()
		})()

		fmt.Printf("Watching %s for changes - server will auto-reload when config changes\n", *configPath)
		go watchConfigFile(*configPath)
	}

	// shutdown on signal
	go func() {
		sig := <-sigChan
		fmt.Printf("Received signal %v, shutting down...\n", sig)
		cmMu.Lock()
		cm.Shutdown()
		cmMu.Unlock()
		close(exitChan)
	}()

	<-exitChan
}

// watchConfigFile emits a ConfigFileChangedEvent whenever the config file is
// rewritten. Watching the directory instead of the file survives editors
// that replace the file on save.
func watchConfigFile(configPath string) {
	absConfigPath, err := filepath.Abs(configPath)
	if err != nil {
		fmt.Printf("Error getting absolute path for watching config file: %v\n", err)
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Printf("Error creating file watcher: %v. File watching disabled.\n", err)
		return
	}
	defer watcher.Close()

	configDir := filepath.Dir(absConfigPath)
	if err := watcher.Add(configDir); err != nil {
		fmt.Printf("Error adding config path directory (%s) to watcher: %v. File watching disabled.\n", configDir, err)
		return
	}

	for {
		select {
		case changeEvent := <-watcher.Events:
			if changeEvent.Name == absConfigPath && (changeEvent.Has(fsnotify.Write) || changeEvent.Has(fsnotify.Create) || changeEvent.Has(fsnotify.Remove)) {
				event.Emit(compass.ConfigFileChangedEvent{Path: absConfigPath})
			} else if changeEvent.Name == filepath.Join(configDir, "..data") && changeEvent.Has(fsnotify.Create) {
				// the change for k8s configmap
				event.Emit(compass.ConfigFileChangedEvent{Path: absConfigPath})
			}

		case err := <-watcher.Errors:
			log.Printf("File watcher error: %v", err)
		}
	}
}

func debounce(interval time.Duration, f func()) func() {
	var timer *time.Timer
	return func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(interval, f)
	}
}
