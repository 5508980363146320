package storage

import "time"

// Event is one completed exchange: the user's message, the reply and what
// the augmentation policy did with it. Events are appended in order.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	UserID            int64     `json:"user_id,omitempty"`
	ConversationID    string    `json:"conversation_id"`
	Persona           string    `json:"persona"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	// AugmentationTopic is empty when no encyclopedia info was added.
	AugmentationTopic string  `json:"augmentation_topic,omitempty"`
	Effectiveness     float64 `json:"effectiveness"`
}

// Augmented reports whether the reply carried encyclopedia info.
func (e Event) Augmented() bool { return e.AugmentationTopic != "" }

// Recorder abstracts persistence of interaction events.
// LoadInteractions returns events in chronological order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
