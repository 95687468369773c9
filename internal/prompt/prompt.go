// Package prompt renders move facts into the chat messages the commentary
// model was tuned on.
package prompt

import (
	"fmt"

	"chesscomm/pkg/types"
)

// SystemInstruction is sent verbatim as the system message. The word limits
// are instructions to the model; nothing enforces them on the output.
const SystemInstruction = "Generate professional chess commentary in the specified language. For Type=standard use 30–40 words. For Type=explanation, explain the best move briefly (≤50 words). Return exactly: Commentary, Predicted ELO, Verified Classification."

// userTemplate must match the fine-tuning data byte for byte, including the
// "LanguageL" key.
const userTemplate = `LanguageL: English
LangCode: en
Type: standard
FEN: %s
MoveSAN: %s
Side: %s
Actor: bot
Tag: %s
BestAlt: %s
CP: %s`

// Build returns the system and user messages for f. It never fails: malformed
// facts are passed through to the model unchanged.
func Build(f types.MoveFacts) []types.Message {
	return []types.Message{
		{Role: types.RoleSystem, Content: SystemInstruction},
		{Role: types.RoleUser, Content: UserContent(f)},
	}
}

// UserContent renders the fact sheet.
func UserContent(f types.MoveFacts) string {
	return fmt.Sprintf(userTemplate, f.FEN, f.Move, f.Side, f.Tag, f.BestAlt, f.CP)
}
