package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/shared"
)

// maxVoiceSampleBytes caps the optional voice sample upload at 50MB,
// mirroring the server-side limit so oversized files never leave the client.
const maxVoiceSampleBytes = 50 * 1024 * 1024

var allowedVoiceExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
}

type generateResponse struct {
	Message string `json:"message"`
}

// ValidateGeneration applies the pre-submission checks: required fields and,
// when a voice sample is attached, its format and size. Validation failures
// never reach the backend.
func ValidateGeneration(req models.GenerationRequest) error {
	if strings.TrimSpace(req.MusicName) == "" || strings.TrimSpace(req.Description) == "" {
		return fmt.Errorf("%w: music name and description are required", shared.ErrInvalidInput)
	}

	if req.VoicePath == "" {
		return nil
	}

	ext := strings.ToLower(filepath.Ext(req.VoicePath))
	if !allowedVoiceExtensions[ext] {
		return fmt.Errorf("%w: unsupported voice sample format %q (use mp3, wav, m4a, ogg or flac)", shared.ErrInvalidInput, ext)
	}

	info, err := os.Stat(req.VoicePath)
	if err != nil {
		return fmt.Errorf("%w: voice sample: %v", shared.ErrInvalidInput, err)
	}
	if info.Size() > maxVoiceSampleBytes {
		return fmt.Errorf("%w: voice sample exceeds 50MB", shared.ErrInvalidInput)
	}

	return nil
}

// Generate submits a generation request as a multipart form and returns the
// backend's acknowledgement message. Progress after this point arrives over
// the realtime channel, not this call.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	if err := ValidateGeneration(req); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	fields := map[string]string{
		"description": req.Description,
		"musicName":   req.MusicName,
		"voiceType":   req.VoiceType,
		"lyrics":      req.Lyrics,
		"genre":       req.Genre,
		"rhythm":      req.Rhythm,
		"instruments": req.Instruments,
		"studioType":  req.StudioType,
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	if req.VoicePath != "" {
		if err := attachVoiceSample(form, req.VoicePath); err != nil {
			return "", err
		}
	}

	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/api/music/generate", &buf, form.FormDataContentType())
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.Message, nil
}

func attachVoiceSample(form *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open voice sample: %w", err)
	}
	defer f.Close()

	part, err := form.CreateFormFile("voiceSample", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy voice sample: %w", err)
	}
	return nil
}

// Download streams the audio at musicURL into w and reports the bytes
// written. URLs starting with / resolve against the backend base; anything
// else is fetched as given, since the backend may hand out storage URLs on
// another host.
func (c *Client) Download(ctx context.Context, musicURL string, w io.Writer) (int64, error) {
	if musicURL == "" {
		return 0, fmt.Errorf("%w: music url", shared.ErrMissingArgument)
	}

	target := musicURL
	if strings.HasPrefix(musicURL, "/") {
		target = c.baseURL + musicURL
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return written, fmt.Errorf("failed to stream audio: %w", err)
	}
	return written, nil
}

// ListUserMusic fetches the full music collection for one user. The response
// is a complete snapshot; callers replace, never merge.
func (c *Client) ListUserMusic(ctx context.Context, userID string) ([]models.Music, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	var musics []models.Music
	if err := c.getJSON(ctx, "/api/music/list/user/"+userID, &musics); err != nil {
		return nil, err
	}
	return musics, nil
}
