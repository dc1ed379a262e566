package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/emotion-sense/internal/broker"
	"github.com/kozaktomas/emotion-sense/internal/config"
	"github.com/kozaktomas/emotion-sense/internal/emotion"
	"github.com/kozaktomas/emotion-sense/internal/facedetect"
	"github.com/kozaktomas/emotion-sense/internal/lifecycle"
	"github.com/kozaktomas/emotion-sense/internal/logging"
	"github.com/kozaktomas/emotion-sense/internal/modelapi"
	"github.com/kozaktomas/emotion-sense/internal/pipeline"
	"github.com/kozaktomas/emotion-sense/internal/worker"
	"github.com/sirupsen/logrus"
)

// app is the wired pipeline shared by the classify, watch and serve commands.
type app struct {
	cfg          *config.Config
	log          *logrus.Logger
	catalog      *emotion.Catalog
	manager      *lifecycle.Manager
	broker       *broker.Broker
	orchestrator *pipeline.Orchestrator
}

func newApp(cfg *config.Config, log *logrus.Logger) (*app, error) {
	factory, err := workerFactory(cfg.Worker, log)
	if err != nil {
		return nil, err
	}
	detector, err := newDetector(cfg.Detector, cfg.Worker.Timeout)
	if err != nil {
		return nil, err
	}

	manager := lifecycle.New(factory, log)
	requests := broker.New(manager, log)
	manager.SetSink(requests)

	catalog := cfg.Emotions.Catalog()
	locator := facedetect.NewLocator(detector, cfg.Detector.MinConfidence)

	logging.Info(logging.Fields{
		"worker":   cfg.Worker.Mode,
		"detector": cfg.Detector.Kind,
		"model":    cfg.Worker.ModelURL,
	}, "[App] pipeline configured")

	return &app{
		cfg:          cfg,
		log:          log,
		catalog:      catalog,
		manager:      manager,
		broker:       requests,
		orchestrator: pipeline.New(manager, locator, requests, catalog, log),
	}, nil
}

func (a *app) Close() {
	a.manager.Close()
}

// workerFactory returns a factory for the configured worker transport.
func workerFactory(cfg config.WorkerConfig, log *logrus.Logger) (lifecycle.Factory, error) {
	switch cfg.Mode {
	case config.WorkerModeLocal:
		client := modelapi.NewClient(cfg.ModelURL, cfg.Timeout)
		return func() (worker.Handle, error) {
			return worker.Spawn(worker.NewRemoteModel(client), log), nil
		}, nil
	case config.WorkerModeProcess:
		path := cfg.Command
		if path == "" {
			self, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("failed to locate own executable: %w", err)
			}
			path = self
		}
		return func() (worker.Handle, error) {
			p, err := worker.StartProcess(path, []string{"worker"}, log)
			if err != nil {
				return nil, err
			}
			return p, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown worker mode %q", cfg.Mode)
	}
}

func newDetector(cfg config.DetectorConfig, timeout time.Duration) (facedetect.Detector, error) {
	switch cfg.Kind {
	case config.DetectorHTTP:
		return facedetect.NewHTTPDetector(modelapi.NewClient(cfg.URL, timeout)), nil
	case config.DetectorYuNet:
		return facedetect.NewYuNetDetector(cfg.Socket, timeout), nil
	default:
		return nil, fmt.Errorf("unknown face detector %q", cfg.Kind)
	}
}
