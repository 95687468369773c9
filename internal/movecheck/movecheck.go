// Package movecheck reports inconsistencies between the move facts and the
// position they describe. Findings are advisory; nothing here rejects input.
package movecheck

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"chesscomm/pkg/types"
)

// Finding is one advisory observation about a MoveFacts record.
type Finding struct {
	Field   string
	Message string
}

func (f Finding) String() string { return f.Field + ": " + f.Message }

// Check parses facts.FEN and verifies the side to move, the played move and
// the best alternative against it. An unparseable FEN yields a single finding.
func Check(facts types.MoveFacts) []Finding {
	opt, err := chess.FEN(facts.FEN)
	if err != nil {
		return []Finding{{Field: "fen", Message: err.Error()}}
	}
	pos := chess.NewGame(opt).Position()

	var out []Finding
	if side, ok := parseSide(facts.Side); !ok {
		out = append(out, Finding{Field: "side", Message: fmt.Sprintf("unrecognised side %q", facts.Side)})
	} else if side != pos.Turn() {
		out = append(out, Finding{Field: "side", Message: fmt.Sprintf("%s given but %s is to move", side.Name(), pos.Turn().Name())})
	}
	if msg := illegal(pos, facts.Move); msg != "" {
		out = append(out, Finding{Field: "move", Message: msg})
	}
	if msg := illegal(pos, facts.BestAlt); msg != "" {
		out = append(out, Finding{Field: "best_alt", Message: msg})
	}
	return out
}

func parseSide(s string) (chess.Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return chess.White, true
	case "black", "b":
		return chess.Black, true
	}
	return chess.NoColor, false
}

func illegal(pos *chess.Position, san string) string {
	if _, err := (chess.AlgebraicNotation{}).Decode(pos, strings.TrimSpace(san)); err != nil {
		return fmt.Sprintf("%q is not legal in this position", san)
	}
	return ""
}
