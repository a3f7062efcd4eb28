package ai

import "context"

// Turn is one prior chat line handed to the assistant as context.
type Turn struct {
	Author  string
	Content string
}

// AssistantInput carries the conversation context for a travel assistant reply.
type AssistantInput struct {
	ChatName    string
	Destination string
	Prompt      string
	History     []Turn
}

// AssistantReply is the structured answer of the travel assistant.
type AssistantReply struct {
	Content string   `json:"content"`
	Actions []string `json:"actions,omitempty"`
}

// Assistant produces travel assistant replies inside a conversation.
type Assistant interface {
	Reply(ctx context.Context, input AssistantInput) (AssistantReply, error)
}
