package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/audio-transcriber/internal/metrics"
	"github.com/snarg/audio-transcriber/internal/transcribe"
)

const (
	uploadField     = "file"
	audioTypePrefix = "audio"

	detailInvalidType = "Invalid file type. Please upload an audio file."
	detailEmptyFile   = "Uploaded file is empty."
	detailErrorPrefix = "An error occurred during transcription"
)

var errMissingFile = errors.New(`no file in form field "file"`)

// FileStager stages an upload on disk for the duration of fn and removes it
// afterwards.
type FileStager interface {
	With(name string, r io.Reader, fn func(path string) error) error
}

// AudioTranscriber turns a staged audio file into text.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, path string) (*transcribe.Result, error)
	Handle() *transcribe.Handle
}

// TranscriptionResult is the response body of a successful transcription.
type TranscriptionResult struct {
	Filename      string `json:"filename"`
	Transcription string `json:"transcription"`
}

// TranscribeHandler accepts audio uploads and returns their transcript.
type TranscribeHandler struct {
	files       FileStager
	transcriber AudioTranscriber
	log         zerolog.Logger
}

// NewTranscribeHandler creates a new transcribe handler.
func NewTranscribeHandler(files FileStager, transcriber AudioTranscriber, log zerolog.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		files:       files,
		transcriber: transcriber,
		log:         log.With().Str("handler", "transcribe").Logger(),
	}
}

// Routes registers the transcribe endpoint with and without the trailing slash.
func (h *TranscribeHandler) Routes(r chi.Router) {
	r.Post("/transcribe/", h.Transcribe)
	r.Post("/transcribe", h.Transcribe)
}

// Transcribe handles POST /transcribe/.
// Expects a multipart form with a single audio file in the "file" field. The
// part is streamed straight into the staging directory; nothing touches disk
// before the content type and model checks pass.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	part, err := findFilePart(r)
	if err != nil {
		h.rejectBody(w, err)
		return
	}
	defer part.Close()

	filename := part.FileName()
	contentType := part.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), audioTypePrefix) {
		metrics.TranscriptionsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		log.Debug().Str("filename", filename).Str("content_type", contentType).Msg("rejected non-audio upload")
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidFileType, detailInvalidType)
		return
	}

	body := bufio.NewReader(part)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			metrics.TranscriptionsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
			WriteErrorWithCode(w, http.StatusBadRequest, ErrEmptyFile, detailEmptyFile)
			return
		}
		h.rejectBody(w, err)
		return
	}

	handle := h.transcriber.Handle()
	if !handle.Loaded() {
		h.unavailable(w, handle.Err())
		return
	}

	size := &countingReader{r: body}
	var result *transcribe.Result
	err = h.files.With(filename, size, func(path string) error {
		log.Info().Str("filename", filename).Str("path", path).Msg("file written, starting transcription")
		res, err := h.transcriber.Transcribe(r.Context(), path)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.rejectBody(w, err)
		case errors.Is(err, transcribe.ErrModelUnavailable):
			h.unavailable(w, err)
		default:
			metrics.TranscriptionsTotal.WithLabelValues(metrics.ResultError).Inc()
			log.Error().Err(err).Str("filename", filename).Msg("transcription failed")
			WriteErrorWithCode(w, http.StatusInternalServerError, ErrTranscription,
				fmt.Sprintf("%s: %v", detailErrorPrefix, err))
		}
		return
	}

	metrics.UploadSize.Observe(float64(size.n))
	metrics.TranscriptionsTotal.WithLabelValues(metrics.ResultOK).Inc()
	metrics.TranscriptionDuration.WithLabelValues(result.Provider).Observe(result.Elapsed.Seconds())
	log.Info().
		Str("filename", filename).
		Str("provider", result.Provider).
		Str("model", result.Model).
		Dur("inference_ms", result.Elapsed).
		Msg("transcription completed")

	WriteJSON(w, http.StatusOK, TranscriptionResult{
		Filename:      filename,
		Transcription: result.Text,
	})
}

// findFilePart advances the multipart stream to the upload field, skipping
// any other parts.
func findFilePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errMissingFile
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadField && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (h *TranscribeHandler) rejectBody(w http.ResponseWriter, err error) {
	metrics.TranscriptionsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge,
			fmt.Sprintf("Upload exceeds the %d byte limit.", tooLarge.Limit))
		return
	}
	WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "Invalid upload: "+err.Error())
}

func (h *TranscribeHandler) unavailable(w http.ResponseWriter, err error) {
	metrics.TranscriptionsTotal.WithLabelValues(metrics.ResultUnavailable).Inc()
	if !errors.Is(err, transcribe.ErrModelUnavailable) {
		err = fmt.Errorf("%w: %v", transcribe.ErrModelUnavailable, err)
	}
	WriteErrorWithCode(w, http.StatusServiceUnavailable, ErrServiceUnavailable, err.Error())
}

// RootHandler serves the welcome message.
func RootHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the Audio Transcription API! Upload your audio files to transcribe them.",
	})
}
