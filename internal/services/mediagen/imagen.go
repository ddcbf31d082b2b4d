package mediagen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
)

var ErrNoImage = errors.New("image request returned no predictions")

// ImageProvider renders one image for a prompt.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// ImagenClient calls the Imagen predict endpoint.
type ImagenClient struct {
	api   googleAPI
	model string
}

var _ ImageProvider = (*ImagenClient)(nil)

func NewImagenClient(apiKey, model, baseURL string) *ImagenClient {
	return &ImagenClient{api: newGoogleAPI(apiKey, baseURL), model: model}
}

type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio"`
}

type imagenResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

func (c *ImagenClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:predict", c.api.baseURL, c.model)
	req := imagenRequest{
		Instances:  []imagenInstance{{Prompt: prompt}},
		Parameters: imagenParameters{SampleCount: 1, AspectRatio: "16:9"},
	}

	var resp imagenResponse
	if err := c.api.do(ctx, http.MethodPost, url, req, &resp); err != nil {
		return nil, err
	}

	// Safety-filtered prompts come back with no predictions.
	if len(resp.Predictions) == 0 || resp.Predictions[0].BytesBase64Encoded == "" {
		return nil, ErrNoImage
	}

	data, err := base64.StdEncoding.DecodeString(resp.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return data, nil
}
