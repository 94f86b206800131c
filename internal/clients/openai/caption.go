package openai

import (
	"context"
	"encoding/base64"

	"github.com/filedrive/semdex/internal/logger"
)

const captionPrompt = "What is in this image?"

// Captioner describes raw image bytes as text.
type Captioner interface {
	Caption(ctx context.Context, image []byte) (string, error)
}

type captioner struct {
	client Client
	model  string
	log    *logger.Logger
}

// NewCaptioner builds a Captioner on top of the chat-completions client.
func NewCaptioner(client Client, model string, log *logger.Logger) Captioner {
	return &captioner{
		client: client,
		model:  model,
		log:    log.With("service", "Captioner"),
	}
}

func (c *captioner) Caption(ctx context.Context, image []byte) (string, error) {
	caption, err := c.client.CompleteWithImage(ctx, c.model, captionPrompt, image)
	if err != nil {
		return "", err
	}
	c.log.Debug("received image caption", "length", len(caption))
	return caption, nil
}

func base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
