package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Backend is the slice of the model client the adapter depends on.
type Backend interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
	Speech(ctx context.Context, text string) (io.ReadCloser, error)
}

// Adapter turns recorded audio into text and text back into audio files. Both
// operations are independent, retry-free, and leave file ownership with the
// caller.
type Adapter struct {
	backend Backend
	log     *slog.Logger
}

// NewAdapter constructs an adapter over a speech backend.
func NewAdapter(backend Backend, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}

	return &Adapter{backend: backend, log: log.With("component", "audio.adapter")}
}

// Transcribe uploads the audio file at path and returns the backend's best
// transcription. A missing file is a distinct NotFound failure, checked before
// any backend call.
func (a *Adapter) Transcribe(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewError(ErrorNotFound, fmt.Sprintf("audio file not found: %s", path), err)
		}
		return "", NewError(ErrorIO, fmt.Sprintf("open audio file %s", path), err)
	}
	defer file.Close()

	text, err := a.backend.Transcribe(ctx, file, filepath.Base(path))
	if err != nil {
		return "", NewError(ErrorBackend, "transcription failed", err)
	}
	a.log.Debug("Transcription completed", "path", path, "transcript_length", len(text))

	return text, nil
}

// Synthesize speaks text into an audio file and returns its path. An empty
// outputPath allocates a fresh temp file; otherwise the parent directory is
// created. The caller owns cleanup of the returned file.
func (a *Adapter) Synthesize(ctx context.Context, text string, outputPath string) (string, error) {
	path, err := resolveOutputPath(outputPath)
	if err != nil {
		return "", err
	}

	stream, err := a.backend.Speech(ctx, text)
	if err != nil {
		return "", NewError(ErrorBackend, "speech synthesis failed", err)
	}
	defer stream.Close()

	file, err := os.Create(path)
	if err != nil {
		return "", NewError(ErrorIO, fmt.Sprintf("create audio file %s", path), err)
	}

	if _, err := io.Copy(file, stream); err != nil {
		file.Close()
		os.Remove(path)
		return "", NewError(ErrorIO, fmt.Sprintf("write audio file %s", path), err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", NewError(ErrorIO, fmt.Sprintf("close audio file %s", path), err)
	}
	a.log.Debug("Synthesis completed", "path", path, "text_length", len(text))

	return path, nil
}

func resolveOutputPath(outputPath string) (string, error) {
	if outputPath == "" {
		tmp, err := os.CreateTemp("", "ragline-tts-*.mp3")
		if err != nil {
			return "", NewError(ErrorIO, "allocate temp audio file", err)
		}
		path := tmp.Name()
		tmp.Close()
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return "", NewError(ErrorIO, fmt.Sprintf("create parent directory for %s", outputPath), err)
	}

	return outputPath, nil
}
