// Package assistant runs one chat turn end to end: history, augmentation,
// guidance, persona, model call and learning.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"liora/internal/augment"
	"liora/internal/conversation"
	"liora/internal/learning"
	"liora/internal/llm"
	"liora/internal/persona"
	"liora/internal/storage"
)

const defaultHistoryWindow = 6

// Deps are the collaborators of an Assistant. Recorder and Logger are optional.
type Deps struct {
	Conversations *conversation.Store
	Personas      *persona.Selector
	Policy        *augment.Policy
	Learning      *learning.Store
	LLM           llm.Client
	Recorder      storage.Recorder
	Logger        *zap.Logger
}

type Option func(*Assistant)

// WithHistoryWindow sets how many past messages go into the prompt.
func WithHistoryWindow(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.window = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(a *Assistant) { a.now = now } }

// WithStarterRandom picks the opening question source.
func WithStarterRandom(r conversation.Intn) Option { return func(a *Assistant) { a.starter = r } }

type Assistant struct {
	convs    *conversation.Store
	personas *persona.Selector
	policy   *augment.Policy
	learning *learning.Store
	llm      llm.Client
	recorder storage.Recorder
	logger   *zap.Logger
	window   int
	now      func() time.Time
	starter  conversation.Intn

	mu        sync.Mutex
	lastScore map[string]float64
}

func New(d Deps, opts ...Option) (*Assistant, error) {
	if d.Conversations == nil || d.Personas == nil || d.Policy == nil || d.Learning == nil || d.LLM == nil {
		return nil, errors.New("assistant: missing dependency")
	}
	a := &Assistant{
		convs:     d.Conversations,
		personas:  d.Personas,
		policy:    d.Policy,
		learning:  d.Learning,
		llm:       d.LLM,
		recorder:  d.Recorder,
		logger:    d.Logger,
		window:    defaultHistoryWindow,
		now:       time.Now,
		lastScore: make(map[string]float64),
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

type Request struct {
	ConversationID string
	// Persona overrides the conversation's persona when set.
	Persona string
	Message string
	UserID  int64
	// OnChunk receives reply text as the model streams it.
	OnChunk func(string)
}

type Result struct {
	ConversationID string
	Title          string
	Persona        persona.Persona
	Reply          string
	Augmentation   augment.Augmentation
	Effectiveness  float64
	// ModelErr is set when the model failed and Reply carries the apology.
	ModelErr error
}

// Start opens a new conversation for owner greeted by a starter question.
func (a *Assistant) Start(owner, personaID string) (conversation.Conversation, error) {
	p := a.personas.Get(personaID)
	c, err := a.convs.Create(owner, p.ID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	return a.convs.Append(c.ID, conversation.RoleAssistant, conversation.Starter(a.starter))
}

// Reply handles one user message. Model failures do not return an error:
// the reply becomes an apology and nothing is learned from the turn.
func (a *Assistant) Reply(ctx context.Context, req Request) (Result, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return Result{}, errors.New("empty message")
	}
	conv, err := a.convs.Get(req.ConversationID)
	if err != nil {
		return Result{}, err
	}
	p := a.personas.Get(conv.Persona)
	if req.Persona != "" {
		p = a.personas.Get(req.Persona)
		if p.ID != conv.Persona {
			if err := a.convs.SetPersona(conv.ID, p.ID); err != nil {
				return Result{}, err
			}
		}
	}

	conv, err = a.convs.Append(conv.ID, conversation.RoleUser, msg)
	if err != nil {
		return Result{}, err
	}
	if conv.UserMessages() == 1 && conv.NeedsTitle() {
		conv.Title = a.title(ctx, conv.ID, msg)
	}

	history := conversation.RenderHistory(conv.Messages, a.window)
	aug := a.policy.Augment(ctx, msg, history)
	guidance := a.learning.Guidance(msg, history)

	res := Result{ConversationID: conv.ID, Title: conv.Title, Persona: p, Augmentation: aug}
	reply, err := a.complete(ctx, buildPrompt(a.personas.Instruction(p.ID), guidance, history, msg, aug), req.OnChunk)
	if err != nil {
		a.logger.Error("model call failed", zap.String("conversation_id", conv.ID), zap.Error(err))
		res.ModelErr = err
		reply = fmt.Sprintf("Sorry, I encountered an error: %v", err)
	}
	res.Reply = reply

	if _, err := a.convs.Append(conv.ID, conversation.RoleAssistant, reply); err != nil {
		return res, err
	}
	if res.ModelErr != nil {
		return res, nil
	}

	res.Effectiveness = a.learning.RecordInteraction(msg, reply, history, "")
	a.mu.Lock()
	a.lastScore[conv.ID] = res.Effectiveness
	a.mu.Unlock()

	a.record(storage.Event{
		Timestamp:         a.now().UTC(),
		UserID:            req.UserID,
		ConversationID:    conv.ID,
		Persona:           p.ID,
		UserMessage:       msg,
		AssistantResponse: reply,
		AugmentationTopic: aug.Topic,
		Effectiveness:     res.Effectiveness,
	})
	a.logger.Info("reply sent",
		zap.String("conversation_id", conv.ID),
		zap.String("persona", p.ID),
		zap.String("augmentation_topic", aug.Topic),
		zap.Float64("effectiveness", res.Effectiveness))
	return res, nil
}

func (a *Assistant) complete(ctx context.Context, msgs []llm.Message, onChunk func(string)) (string, error) {
	stream, err := llm.Complete(ctx, a.llm, msgs)
	if err != nil {
		return "", err
	}
	text, err := llm.Collect(stream, onChunk)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

// title asks the model for a contextual title and falls back to the first
// words of the message.
func (a *Assistant) title(ctx context.Context, id, message string) string {
	title := ""
	raw, err := llm.Text(ctx, a.llm, conversation.TitlePrompt(message))
	if err == nil {
		title = conversation.CleanTitle(raw)
	} else {
		a.logger.Debug("title generation failed", zap.Error(err))
	}
	if title == "" {
		title = conversation.FallbackTitle(message)
	}
	if err := a.convs.Rename(id, title); err != nil {
		a.logger.Warn("rename conversation", zap.String("conversation_id", id), zap.Error(err))
	}
	return title
}

func (a *Assistant) record(ev storage.Event) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.AppendInteraction(ev); err != nil {
		a.logger.Warn("failed to record interaction", zap.Error(err))
	}
}

// Feedback applies user feedback to the last reply of a conversation.
func (a *Assistant) Feedback(conversationID, text string) error {
	a.mu.Lock()
	score, ok := a.lastScore[conversationID]
	a.mu.Unlock()
	if !ok {
		return conversation.ErrNotFound
	}
	a.learning.ApplyFeedback(text, score)
	return nil
}

// Rename retitles a conversation.
func (a *Assistant) Rename(conversationID, title string) error {
	return a.convs.Rename(conversationID, title)
}

// Delete removes a conversation and forgets its pending feedback score.
func (a *Assistant) Delete(conversationID string) error {
	if err := a.convs.Delete(conversationID); err != nil {
		return err
	}
	a.mu.Lock()
	delete(a.lastScore, conversationID)
	a.mu.Unlock()
	return nil
}

func (a *Assistant) Insights() learning.Insights { return a.learning.Insights() }

func (a *Assistant) Conversations() *conversation.Store { return a.convs }

func (a *Assistant) Personas() *persona.Selector { return a.personas }

// Close flushes the learning state.
func (a *Assistant) Close() error {
	return a.learning.Close()
}
