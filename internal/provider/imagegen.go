package provider

import (
	"context"
	"fmt"
)

// ImageGen dispatches generation jobs to a provider that completes
// asynchronously via webhook callback.
type ImageGen struct {
	client *Client
}

func NewImageGen(baseURL, apiKey string) *ImageGen {
	return &ImageGen{client: NewClient(baseURL, apiKey)}
}

func (g *ImageGen) Configured() bool {
	return g.client.Configured()
}

// Dispatch submits a prompt and returns the provider task id. The provider
// later calls back on callbackURL with the result; nothing is awaited here.
func (g *ImageGen) Dispatch(ctx context.Context, prompt, callbackURL string) (string, error) {
	doc, err := g.client.PostJSON(ctx, "/api/v1/generate", map[string]any{
		"prompt":      prompt,
		"callBackUrl": callbackURL,
	})
	if err != nil {
		return "", err
	}

	code, _ := doc["code"].(float64)
	if int(code) != 200 {
		return "", fmt.Errorf("image provider rejected job (code %d)", int(code))
	}
	data, _ := doc["data"].(map[string]any)
	taskID, _ := data["taskId"].(string)
	if taskID == "" {
		return "", fmt.Errorf("image provider response missing taskId")
	}
	return taskID, nil
}
