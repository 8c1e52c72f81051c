package main

import (
	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/config"
	"github.com/windfall/poplingo_service/internal/logger"
	"github.com/windfall/poplingo_service/internal/metrics"
	"github.com/windfall/poplingo_service/internal/repository"
	"github.com/windfall/poplingo_service/internal/service"
)

// serviceDeps are the storage and infrastructure backends the services run
// on. Optional fields are left nil when the backend is disabled.
type serviceDeps struct {
	notebookRepo repository.NotebookRepository
	userRepo     repository.UserRepository
	cache        service.Cache
	media        service.MediaStore
	events       service.EventPublisher
}

type services struct {
	ai         *service.AIService
	notebook   *service.NotebookService
	dictionary *service.DictionaryService
	speech     *service.SpeechService
	study      *service.StudyService
	story      *service.StoryService
	auth       *service.AuthService
}

// buildServices wires the domain services. Each one logs under its own
// component name.
func buildServices(cfg *config.Config, log zerolog.Logger, met *metrics.Metrics, prov *providers, deps serviceDeps) *services {
	s := &services{}

	s.ai = service.NewAIService(prov.text, prov.image, prov.speech, logger.Component(log, "ai")).
		WithRetry(cfg.AIMaxRetries, cfg.AIRetryDelay).
		WithMetrics(met)

	s.notebook = service.NewNotebookService(deps.notebookRepo, logger.Component(log, "notebook")).WithMetrics(met)
	if deps.events != nil {
		s.notebook.WithEvents(deps.events)
	}

	s.dictionary = service.NewDictionaryService(s.ai, logger.Component(log, "dictionary")).WithMetrics(met)
	s.speech = service.NewSpeechService(s.ai, logger.Component(log, "speech"))
	if deps.cache != nil {
		s.dictionary.WithCache(deps.cache, cfg.LookupCacheTTL)
		s.speech.WithCache(deps.cache, cfg.SpeechCacheTTL)
	}
	if deps.media != nil {
		s.dictionary.WithMediaStore(deps.media)
	}

	s.study = service.NewStudyService(s.notebook, logger.Component(log, "study"))
	s.story = service.NewStoryService(s.ai, s.notebook, logger.Component(log, "story"))
	s.auth = service.NewAuthService(deps.userRepo, cfg.JWTSecret, cfg.JWTTTL)
	return s
}
