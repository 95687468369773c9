package types

// MoveFacts describes a single chess move to be commented on.
// All fields are passed through verbatim; nothing here is validated.
type MoveFacts struct {
	// Position before the move in Forsyth–Edwards Notation.
	// example: rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1
	FEN string `json:"fen" example:"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"`
	// Move played, in Standard Algebraic Notation.
	// example: c5
	Move string `json:"move" example:"c5"`
	// Side that played the move (White/Black).
	// example: Black
	Side string `json:"side" example:"Black"`
	// Qualitative tag (Best, Good, Inaccuracy, Mistake, Blunder, ...).
	// example: Best
	Tag string `json:"tag" example:"Best"`
	// Best alternative move in SAN.
	// example: e5
	BestAlt string `json:"best_alt" example:"e5"`
	// Centipawn evaluation change, preformatted.
	// example: 27->21 (Δ=6)
	CP string `json:"cp" example:"27->21 (Δ=6)"`
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn rendered by the model's chat template.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Model represents a discoverable model file on disk.
type Model struct {
	// Stable identifier for the model (file name).
	// example: chess-gemma-commentary.Q8_0.gguf
	ID string `json:"id" example:"chess-gemma-commentary.Q8_0.gguf"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/llm/chess-gemma-commentary.Q8_0.gguf
	Path string `json:"path" example:"/home/user/models/llm/chess-gemma-commentary.Q8_0.gguf"`
}
