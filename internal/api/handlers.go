package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"singalong/internal/acquisition"
	"singalong/internal/catalog"
	"singalong/internal/models"
)

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.svc.Status(c.UserContext()))
}

func (s *Server) handleValidateDownload(c *fiber.Ctx) error {
	var req ValidateRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}
	meta, err := s.svc.ValidateDownload(c.UserContext(), req.URL)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(FromMetadata(meta))
}

func (s *Server) handleQueueDownload(c *fiber.Ctx) error {
	var req DownloadRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}
	job, err := s.svc.QueueDownload(c.UserContext(), acquisition.Request{
		SourceRef:  req.URL,
		Quality:    req.Quality,
		Title:      req.Title,
		Artist:     req.Artist,
		Kind:       req.Kind,
		LyricsText: req.LyricsText,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(FromDownloadJob(job))
}

func (s *Server) handleListDownloads(c *fiber.Ctx) error {
	return c.JSON(DownloadListResponse{Jobs: FromDownloadJobs(s.svc.Downloads())})
}

func (s *Server) handleGetDownload(c *fiber.Ctx) error {
	job, ok := s.svc.Download(c.Params("id"))
	if !ok {
		return notFound(c, "download job not found")
	}
	return c.JSON(FromDownloadJob(job))
}

func (s *Server) handleQueueSeparation(c *fiber.Ctx) error {
	var req SeparationRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}
	job, err := s.svc.QueueSeparation(c.UserContext(), req.CatalogID, req.Quality)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(FromSeparationJob(job))
}

func (s *Server) handleListSeparations(c *fiber.Ctx) error {
	return c.JSON(SeparationListResponse{Jobs: FromSeparationJobs(s.svc.Separations())})
}

func (s *Server) handleGetSeparation(c *fiber.Ctx) error {
	job, ok := s.svc.Separation(c.Params("id"))
	if !ok {
		return notFound(c, "separation job not found")
	}
	return c.JSON(FromSeparationJob(job))
}

func (s *Server) handleListLibrary(c *fiber.Ctx) error {
	entries, err := s.svc.Library(c.UserContext())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(LibraryResponse{Entries: FromEntries(entries)})
}

func (s *Server) handleGetEntry(c *fiber.Ctx) error {
	entry, err := s.svc.Entry(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	if entry == nil {
		return notFound(c, "catalog entry not found")
	}
	return c.JSON(FromEntry(*entry))
}

func (s *Server) handlePlayback(c *fiber.Ctx) error {
	playback, err := s.svc.Playback(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(PlaybackResponse{Instrumental: playback.Instrumental, Vocal: playback.Vocal})
}

func (s *Server) handleRemoveEntry(c *fiber.Ctx) error {
	if err := s.svc.RemoveEntry(c.UserContext(), c.Params("id")); err != nil {
		return serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleImport(c *fiber.Ctx) error {
	var req ImportRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}
	entry, err := s.svc.ImportLocal(c.UserContext(), catalog.LocalRequest{
		SourcePath: req.SourcePath,
		Title:      req.Title,
		Artist:     req.Artist,
		Type:       req.Type,
		LyricsText: req.LyricsText,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(FromEntry(*entry))
}

func (s *Server) handleListModels(c *fiber.Ctx) error {
	return c.JSON(ModelListResponse{Models: FromModelStatuses(s.svc.Models())})
}

func (s *Server) handleDownloadModel(c *fiber.Ctx) error {
	tier, err := models.ParseTier(strings.TrimSpace(c.Params("tier")))
	if err != nil {
		return validationError(c, err.Error(), nil)
	}
	status, err := s.svc.DownloadModel(c.UserContext(), tier)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(FromModelStatus(status))
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(FromSettings(s.svc.Settings()))
}

func (s *Server) handleSetQuality(c *fiber.Ctx) error {
	var req QualityRequest
	if ok, err := s.bind(c, &req); !ok {
		return err
	}
	value, err := s.svc.SetSeparationQuality(models.Tier(req.Quality))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(FromSettings(value))
}
