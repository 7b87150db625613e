package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	speechapi "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	tts "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/vehiclecare/voicebook/internal/speech"
	"google.golang.org/api/option"
)

// Telephony audio arrives as 8kHz mu-law, the format Twilio media callbacks
// deliver.
const (
	callAudioSampleRateHertz = 8000
	defaultRequestTimeout    = 10 * time.Second
)

type CloudSpeechConfig struct {
	CredentialsJSON string
	Language        string
	RequestTimeout  time.Duration
}

// CloudBridge is the live speech bridge backed by Google Cloud
// Text-to-Speech and Speech-to-Text.
type CloudBridge struct {
	tts      *tts.Client
	stt      *speechapi.Client
	language string
	timeout  time.Duration
}

func NewCloudBridge(ctx context.Context, cfg CloudSpeechConfig) (*CloudBridge, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	opts := []option.ClientOption{
		option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)),
	}
	ttsClient, err := tts.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create text-to-speech client: %w", err)
	}
	sttClient, err := speechapi.NewClient(ctx, opts...)
	if err != nil {
		_ = ttsClient.Close()
		return nil, fmt.Errorf("create speech-to-text client: %w", err)
	}
	return &CloudBridge{
		tts:      ttsClient,
		stt:      sttClient,
		language: cfg.Language,
		timeout:  timeout,
	}, nil
}

func (b *CloudBridge) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.tts.SynthesizeSpeech(ctx, &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{
			InputSource: &ttspb.SynthesisInput_Text{Text: text},
		},
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: b.language,
			Name:         voice,
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding: ttspb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return nil, &speech.ServiceError{Op: "synthesize", Err: err}
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, &speech.ServiceError{Op: "synthesize", Err: fmt.Errorf("empty audio for %d chars of text", len(text))}
	}
	return resp.GetAudioContent(), nil
}

func (b *CloudBridge) Recognize(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.stt.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_MULAW,
			SampleRateHertz: callAudioSampleRateHertz,
			LanguageCode:    b.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", &speech.ServiceError{Op: "recognize", Err: err}
	}

	var sb strings.Builder
	for _, result := range resp.GetResults() {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(result.GetAlternatives()[0].GetTranscript())
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		// No intelligible speech. Callers distinguish silence from failure.
		slog.Debug("recognize returned no speech", "audio_bytes", len(audio))
	}
	return text, nil
}

func (b *CloudBridge) Close() error {
	ttsErr := b.tts.Close()
	sttErr := b.stt.Close()
	if ttsErr != nil {
		return ttsErr
	}
	return sttErr
}
