package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/domain"
	"github.com/seu-repo/mirror-voice/internal/service/voice"
)

// CommandProcessor is the part of the voice pipeline the HTTP layer uses.
type CommandProcessor interface {
	ProcessAudio(ctx context.Context, audio []byte) (*voice.Result, error)
	ProcessText(ctx context.Context, text string) (string, error)
	LastProcessedCommand() string
}

// ClientCounter reports connected push-channel sessions.
type ClientCounter interface {
	ClientCount() int
}

type VoiceHandler struct {
	pipeline CommandProcessor
	clients  ClientCounter
	log      *zap.Logger
}

func NewVoiceHandler(pipeline CommandProcessor, clients ClientCounter, log *zap.Logger) *VoiceHandler {
	return &VoiceHandler{
		pipeline: pipeline,
		clients:  clients,
		log:      log,
	}
}

// Register mounts the voice routes.
func (h *VoiceHandler) Register(r fiber.Router) {
	r.Get("/status", h.Status)
	r.Post("/process-audio", h.ProcessAudio)
	r.Post("/process", h.ProcessText)
}

// Status reports liveness, connected sessions and the last command. It has
// no side effects.
func (h *VoiceHandler) Status(c *fiber.Ctx) error {
	return c.JSON(domain.StatusReport{
		Status:               "OK",
		ConnectedClients:     h.clients.ClientCount(),
		LastProcessedCommand: h.pipeline.LastProcessedCommand(),
	})
}

// ProcessAudio accepts a raw WAV body and answers with the transcription,
// the response text and the synthesized speech.
func (h *VoiceHandler) ProcessAudio(c *fiber.Ctx) error {
	// fasthttp reuses the request buffer after the handler returns.
	audio := append([]byte(nil), c.Body()...)

	res, err := h.pipeline.ProcessAudio(c.UserContext(), audio)
	if err != nil {
		if errors.Is(err, voice.ErrEmptyAudio) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No audio data received"})
		}
		h.log.Error("Failed to process audio", zap.Error(err), zap.Int("bytes", len(audio)))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error processing audio"})
	}

	return c.JSON(domain.ProcessAudioResponse{
		Transcription: res.Transcription,
		Response:      res.Response,
		AudioContent:  voice.EncodeAudio(res.Audio),
	})
}

// ProcessText serves clients that recognize speech locally.
func (h *VoiceHandler) ProcessText(c *fiber.Ctx) error {
	var req domain.ProcessTextRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	response, err := h.pipeline.ProcessText(c.UserContext(), req.Text)
	if err != nil {
		if errors.Is(err, voice.ErrEmptyText) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Text is required"})
		}
		h.log.Error("Failed to process text", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error processing request"})
	}

	return c.JSON(domain.ProcessTextResponse{Response: response})
}
