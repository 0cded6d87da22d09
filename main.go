package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"nyhousing/db"
	nyhttp "nyhousing/http"
	"nyhousing/logging"
	"nyhousing/ml"
	"nyhousing/monitoring"
	"nyhousing/predict"
)

type Config struct {
	Http  nyhttp.ServerConfig `yaml:"http"`
	Model struct {
		Path         string `yaml:"path"`
		MetadataPath string `yaml:"metadata_path"`
		WatchDir     string `yaml:"watch_dir"`
	} `yaml:"model"`
	Prediction predict.Config `yaml:"prediction"`
	Database   struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log logging.Config `yaml:"log"`
}

func main() {
	// 1. Load config
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(config.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Initialize database
	if config.Database.Path != "" {
		if err := db.InitDB(config.Database.Path); err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("Database initialized", zap.String("path", config.Database.Path))
	}

	// 3. Load model artifact. A failed load keeps the server up; /health
	// reports unhealthy and prediction routes return 503 until restart.
	loader := ml.NewLoader(config.Model.Path, config.Model.MetadataPath)
	source := func() (ml.Artifact, error) {
		artifact, err := loader.Get()
		if err != nil {
			return nil, err
		}
		return artifact, nil
	}
	if artifact, err := loader.Get(); err != nil {
		logger.Warn("Model artifact not loaded, serving unhealthy", zap.Error(err))
	} else {
		info := artifact.Metadata().ModelInfo
		logger.Info("Model artifact loaded",
			zap.String("model", info.Name),
			zap.String("created", info.CreatedTimestamp))
	}

	// 4. Wire service, metrics, and the live monitor hub
	service, err := predict.NewService(source, config.Prediction, logger)
	if err != nil {
		logger.Fatal("Failed to build prediction service", zap.Error(err))
	}
	metrics := monitoring.NewMetrics()
	hub := monitoring.NewHub(logger)
	go hub.Start()
	defer hub.Stop()

	if config.Model.WatchDir != "" {
		watcher, err := ml.NewArtifactWatcher(config.Model.WatchDir, logger, func(path string) {
			hub.Publish(monitoring.SystemStatus, map[string]string{
				"event": "artifact_updated",
				"path":  path,
			})
		})
		if err != nil {
			logger.Warn("Artifact watcher unavailable", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	// 5. Start HTTP server
	api := nyhttp.NewAPI(service, source, metrics, hub, logger)
	server := nyhttp.NewServer(config.Http, api, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	logger.Info("Serving", zap.String("addr", server.Addr()))

	// 6. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	if err := server.Stop(); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Exiting")
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Config{
		Http:       nyhttp.DefaultServerConfig(),
		Prediction: predict.DefaultConfig(),
	}
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
