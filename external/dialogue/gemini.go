package dialogue

import (
	"context"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/vehiclecare/voicebook/internal/booking"
	internaldialogue "github.com/vehiclecare/voicebook/internal/dialogue"
	"google.golang.org/api/option"
)

const geminiModelName = "gemini-1.5-pro"

// GeminiEngine generates agent utterances with Google Gemini. The transcript
// is replayed as chat history on every call, so the engine itself holds no
// conversation state.
type GeminiEngine struct {
	client *genai.Client
}

func NewGeminiEngine(ctx context.Context, apiKey string) (*GeminiEngine, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiEngine{client: client}, nil
}

func (e *GeminiEngine) OpeningUtterance(req booking.Request) string {
	return openingUtterance(req)
}

func (e *GeminiEngine) NextReply(ctx context.Context, req booking.Request, transcript []booking.Turn, turnsRemaining int) (internaldialogue.Reply, error) {
	last := lastCounterpartyUtterance(transcript)
	if last == "" {
		return internaldialogue.Reply{}, fmt.Errorf("transcript has no counterparty utterance")
	}

	model := e.client.GenerativeModel(geminiModelName)
	model.SetTemperature(0.7)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt(req, turnsRemaining))},
	}

	chat := model.StartChat()
	chat.History = chatHistory(transcript)

	resp, err := chat.SendMessage(ctx, genai.Text("Service Center: "+last))
	if err != nil {
		return internaldialogue.Reply{}, fmt.Errorf("gemini generate: %w", err)
	}
	text := candidateText(resp)
	if text == "" {
		return internaldialogue.Reply{}, fmt.Errorf("gemini returned no candidates")
	}

	utterance, signal := parseMarkers(text)
	entities := ExtractEntities(last)
	if signal == internaldialogue.SignalGoalAchieved {
		entities.Confirmed = true
		// The model often restates the confirmation details; prefer those
		// when the counterparty utterance itself carried none.
		fromModel := ExtractEntities(text)
		if entities.ConfirmationNumber == "" {
			entities.ConfirmationNumber = fromModel.ConfirmationNumber
		}
		if entities.Date == "" {
			entities.Date = fromModel.Date
		}
		if entities.Time == "" {
			entities.Time = fromModel.Time
		}
	}

	return internaldialogue.Reply{
		Utterance: utterance,
		Signal:    signal,
		Entities:  entities,
	}, nil
}

// chatHistory replays an agent/counterparty transcript as Gemini chat turns.
// The trailing counterparty utterance is excluded; it is sent as the new
// message.
func chatHistory(transcript []booking.Turn) []*genai.Content {
	end := len(transcript)
	for end > 0 && transcript[end-1].Speaker == booking.SpeakerCounterparty {
		end--
	}
	history := make([]*genai.Content, 0, end+1)
	if end > 0 && transcript[0].Speaker == booking.SpeakerAgent {
		// Gemini chat history must open with a user turn.
		history = append(history, &genai.Content{
			Role:  "user",
			Parts: []genai.Part{genai.Text("(The call is answered.)")},
		})
	}
	for _, turn := range transcript[:end] {
		role := "user"
		text := "Service Center: " + turn.Text
		if turn.Speaker == booking.SpeakerAgent {
			role = "model"
			text = turn.Text
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(text)},
		})
	}
	return history
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}

func (e *GeminiEngine) Close() error {
	return e.client.Close()
}
