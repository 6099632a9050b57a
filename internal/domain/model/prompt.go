package model

// ChatRole is a local message role. Remote services may support fewer roles.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleArbiter   ChatRole = "arbiter"
	RoleNotice    ChatRole = "notice"
)

// ChatMessage is one entry of a prompt history.
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// Generation holds sampling parameters. Zero fields fall back to client defaults.
type Generation struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
	TopK        int
}

// Prompt is a single request to a text-generation service.
type Prompt struct {
	System     string
	History    []ChatMessage
	Next       string
	Generation *Generation
}

// Persona is one role-playing party: its standing instructions, the extra
// instruction used for its final turn, and the line used when generation fails.
type Persona struct {
	Speaker  Speaker
	System   string
	Closing  string
	Fallback string
}
