package copilot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"opscenter/internal/logging"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

const systemInstruction = "You are 'WK Ops Copilot', a helpful assistant for Wolters Kluwer Sales Operations. " +
	"You are concise, professional, and knowledgeable about sales pipelines, compliance, and Salesforce CRM."

const welcomeText = "Hello! I'm your WK Ops Copilot. How can I assist you with your pipeline or compliance data today?"

// Message roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one chat turn.
type Message struct {
	ID        string
	Role      string
	Text      string
	Timestamp time.Time
	// Failed marks a fallback reply that stood in for a failed request.
	Failed bool

	local bool
}

// Chat is a conversation with the assistant. Sends are serialized.
type Chat struct {
	c *Copilot

	sendMu sync.Mutex
	mu     sync.Mutex
	msgs   []Message
}

// NewChat starts a conversation with the welcome message.
func (c *Copilot) NewChat() *Chat {
	return &Chat{
		c: c,
		msgs: []Message{{
			ID:        uuid.NewString(),
			Role:      RoleModel,
			Text:      welcomeText,
			Timestamp: time.Now(),
			local:     true,
		}},
	}
}

// Messages returns a copy of the transcript.
func (ch *Chat) Messages() []Message {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return append([]Message(nil), ch.msgs...)
}

func (ch *Chat) history() []*genai.Content {
	var out []*genai.Content
	for _, m := range ch.msgs {
		if m.local || m.Failed || m.Text == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Text, role))
	}
	return out
}

// Send adds a user message and streams the reply. onChunk, if set, receives
// the accumulated reply text after every chunk. On failure the transcript
// gets a fallback reply and the error is returned.
func (ch *Chat) Send(ctx context.Context, text string, onChunk func(string)) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, fmt.Errorf("empty message")
	}

	ch.sendMu.Lock()
	defer ch.sendMu.Unlock()

	ctx, cancel := ch.c.withTimeout(ctx)
	defer cancel()

	ch.mu.Lock()
	ch.msgs = append(ch.msgs, Message{ID: uuid.NewString(), Role: RoleUser, Text: text, Timestamp: time.Now()})
	contents := ch.history()
	ch.mu.Unlock()

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}

	var b strings.Builder
	var streamErr error
	for resp, err := range ch.c.gen.Stream(ctx, ch.c.ai.ChatModel, contents, cfg) {
		if err != nil {
			streamErr = err
			break
		}
		if chunk := resp.Text(); chunk != "" {
			b.WriteString(chunk)
			if onChunk != nil {
				onChunk(b.String())
			}
		}
	}

	reply := Message{ID: uuid.NewString(), Role: RoleModel, Text: b.String(), Timestamp: time.Now()}
	if streamErr != nil {
		logging.APIError("chat stream failed: %v", streamErr)
		reply.Text = FallbackChat
		reply.Failed = true
	} else {
		logging.APIDebug("chat reply streamed (%d chars)", len(reply.Text))
	}

	ch.mu.Lock()
	ch.msgs = append(ch.msgs, reply)
	ch.mu.Unlock()

	if streamErr != nil {
		return reply, fmt.Errorf("chat: %w", streamErr)
	}
	return reply, nil
}
