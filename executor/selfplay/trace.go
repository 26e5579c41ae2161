package selfplay

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/brensch/twenty48/game"
	"github.com/brensch/twenty48/store"
)

// traceTurn logs the board and the per-direction scores behind a choice.
func traceTurn(workerID int, state *game.GameState, chosen game.Direction, means []float64) {
	var sb strings.Builder
	sb.WriteString(state.Board.String())
	if len(means) == game.NumDirections {
		for i, m := range means {
			d := game.Directions[i]
			mark := " "
			if d == chosen {
				mark = "*"
			}
			if m == store.IllegalMean {
				fmt.Fprintf(&sb, "%s%-5s   illegal\n", mark, d)
				continue
			}
			fmt.Fprintf(&sb, "%s%-5s %9.1f\n", mark, d, m)
		}
	}
	slog.Debug("trace turn",
		"worker", workerID,
		"turn", state.Turn,
		"score", state.Score,
		"direction", chosen.String(),
		"board", sb.String(),
	)
}
