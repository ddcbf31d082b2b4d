package mediagen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
)

var ErrNoVideo = errors.New("video operation finished without a sample")

// Operation is a handle on a long-running video job.
type Operation interface {
	// Poll refreshes the job state. done is false while the job runs.
	Poll(ctx context.Context) (done bool, err error)
	// Result downloads the finished video.
	Result(ctx context.Context) ([]byte, error)
}

// VideoProvider starts video jobs. seedImage may be nil.
type VideoProvider interface {
	StartVideo(ctx context.Context, prompt string, seedImage []byte) (Operation, error)
}

// VeoClient calls the Veo long-running predict endpoint.
type VeoClient struct {
	api   googleAPI
	model string
}

var _ VideoProvider = (*VeoClient)(nil)

func NewVeoClient(apiKey, model, baseURL string) *VeoClient {
	return &VeoClient{api: newGoogleAPI(apiKey, baseURL), model: model}
}

type veoRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoParameters struct {
	AspectRatio string `json:"aspectRatio"`
	SampleCount int    `json:"sampleCount"`
}

type veoOperationState struct {
	Name     string    `json:"name"`
	Done     bool      `json:"done"`
	Error    *apiError `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

func (c *VeoClient) StartVideo(ctx context.Context, prompt string, seedImage []byte) (Operation, error) {
	instance := veoInstance{Prompt: prompt}
	if len(seedImage) > 0 {
		instance.Image = &veoImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(seedImage),
			MimeType:           "image/png",
		}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:predictLongRunning", c.api.baseURL, c.model)
	req := veoRequest{
		Instances:  []veoInstance{instance},
		Parameters: veoParameters{AspectRatio: "16:9", SampleCount: 1},
	}

	var state veoOperationState
	if err := c.api.do(ctx, http.MethodPost, url, req, &state); err != nil {
		return nil, err
	}
	if state.Name == "" {
		return nil, fmt.Errorf("video request returned no operation name")
	}
	return &veoOperation{api: c.api, state: state}, nil
}

type veoOperation struct {
	api   googleAPI
	state veoOperationState
}

func (o *veoOperation) Poll(ctx context.Context) (bool, error) {
	if o.state.Done {
		return true, o.failure()
	}

	url := fmt.Sprintf("%s/v1beta/%s", o.api.baseURL, o.state.Name)
	var state veoOperationState
	if err := o.api.do(ctx, http.MethodGet, url, nil, &state); err != nil {
		return false, err
	}
	if state.Name == "" {
		state.Name = o.state.Name
	}
	o.state = state

	if !state.Done {
		return false, nil
	}
	return true, o.failure()
}

func (o *veoOperation) failure() error {
	if o.state.Error != nil {
		return fmt.Errorf("video operation failed: %s", o.state.Error.Message)
	}
	return nil
}

func (o *veoOperation) Result(ctx context.Context) ([]byte, error) {
	if !o.state.Done {
		return nil, fmt.Errorf("video operation still running")
	}
	if err := o.failure(); err != nil {
		return nil, err
	}
	if o.state.Response == nil || len(o.state.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		return nil, ErrNoVideo
	}

	uri := o.state.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI
	if uri == "" {
		return nil, ErrNoVideo
	}
	return o.api.download(ctx, uri)
}
