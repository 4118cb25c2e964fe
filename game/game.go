// Package game implements the tic-tac-toe board: move parsing, legality,
// and terminal-state detection.
package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	ttt "github.com/TyuiX/TicTacToeServer"
)

// Errors returned by ParseMove and Apply/Resign. Callers map any of
// these to a NACK without terminating the session.
var (
	ErrBadMove     = errors.New("game: malformed move string")
	ErrBadRole     = errors.New("game: move has no role")
	ErrOver        = errors.New("game: game is already over")
	ErrWrongTurn   = errors.New("game: not this role's turn")
	ErrWrongSymbol = errors.New("game: symbol does not match role")
	ErrOccupied    = errors.New("game: cell is occupied")
	ErrBadCell     = errors.New("game: cell out of range")
)

// Move is an immutable description of a single placement.
type Move struct {
	Cell   int // 1..9
	Role   ttt.Role
	Symbol byte // 'X' or 'O'
}

// Game is a single 3x3 tic-tac-toe board. Cells are indexed 1..9,
// row-major, left to right, top to bottom:
//
//	1 2 3
//	4 5 6
//	7 8 9
type Game struct {
	mu sync.Mutex

	cells        [10]ttt.Role // index 0 unused
	expectedTurn ttt.Role
	symbols      [3]byte // indexed by Role; 0 means unassigned
	over         bool
	winner       ttt.Role
}

// New returns a fresh board with FIRST to move and no symbols assigned.
func New() *Game {
	return &Game{expectedTurn: ttt.FIRST}
}

// Over reports whether the game has reached a terminal state.
func (g *Game) Over() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.over
}

// Winner returns the terminal outcome. It is only meaningful once Over
// returns true; until then it returns NONE.
func (g *Game) Winner() ttt.Role {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.over {
		return ttt.NONE
	}
	return g.winner
}

// symbolFor returns the symbol assigned to role, assigning the default
// (X for the first mover, the complement for the second) if unset.
// Caller must hold g.mu.
func (g *Game) symbolFor(role ttt.Role) byte {
	if g.symbols[role] != 0 {
		return g.symbols[role]
	}
	if role == ttt.FIRST {
		g.symbols[ttt.FIRST] = 'X'
		return 'X'
	}
	// Second mover: pick whichever the first mover did not. The first
	// mover's symbol is assigned here too if somehow still unset.
	first := g.symbols[ttt.FIRST]
	if first == 0 {
		first = 'X'
		g.symbols[ttt.FIRST] = first
	}
	if first == 'X' {
		g.symbols[ttt.SECOND] = 'O'
	} else {
		g.symbols[ttt.SECOND] = 'X'
	}
	return g.symbols[role]
}

// ParseMove accepts either a single digit "1".."9", or the four
// character form "d<-S" where S is 'X' or 'O'. It never mutates the
// board; symbol assignment (on first use) happens as part of parsing.
func (g *Game) ParseMove(role ttt.Role, str string) (Move, error) {
	if role == ttt.NONE {
		return Move{}, ErrBadRole
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch len(str) {
	case 1:
		cell, err := strconv.Atoi(str)
		if err != nil || cell < 1 || cell > 9 {
			return Move{}, ErrBadMove
		}
		return Move{Cell: cell, Role: role, Symbol: g.symbolFor(role)}, nil
	case 4:
		if str[1] != '<' || str[2] != '-' {
			return Move{}, ErrBadMove
		}
		cell, err := strconv.Atoi(str[0:1])
		if err != nil || cell < 1 || cell > 9 {
			return Move{}, ErrBadMove
		}
		sym := str[3]
		if sym != 'X' && sym != 'O' {
			return Move{}, ErrBadMove
		}
		if g.symbols[role] == 0 {
			if g.symbols[role.Other()] == sym {
				return Move{}, ErrWrongSymbol
			}
			g.symbols[role] = sym
		} else if g.symbols[role] != sym {
			return Move{}, ErrWrongSymbol
		}
		return Move{Cell: cell, Role: role, Symbol: sym}, nil
	default:
		return Move{}, ErrBadMove
	}
}

// Apply validates and plays m, flipping the turn and updating terminal
// state on success.
func (g *Game) Apply(m Move) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.over {
		return ErrOver
	}
	if m.Role != g.expectedTurn {
		return ErrWrongTurn
	}
	if g.symbols[m.Role] != 0 && g.symbols[m.Role] != m.Symbol {
		return ErrWrongSymbol
	}
	if m.Cell < 1 || m.Cell > 9 {
		return ErrBadCell
	}
	if g.cells[m.Cell] != ttt.NONE {
		return ErrOccupied
	}

	g.symbols[m.Role] = m.Symbol
	g.cells[m.Cell] = m.Role
	g.expectedTurn = g.expectedTurn.Other()

	if winner, ok := g.checkWin(); ok {
		g.over = true
		g.winner = winner
	} else if g.full() {
		g.over = true
		g.winner = ttt.NONE
	}

	return nil
}

// Resign marks the game over with the opponent of role as winner. It
// fails if the game is already over.
func (g *Game) Resign(role ttt.Role) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.over {
		return ErrOver
	}
	g.over = true
	g.winner = role.Other()
	return nil
}

// lines enumerates every row, column, and diagonal as cell indices.
var lines = [8][3]int{
	{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, // rows
	{1, 4, 7}, {2, 5, 8}, {3, 6, 9}, // columns
	{1, 5, 9}, {3, 5, 7}, // diagonals
}

// checkWin scans every row, column, and diagonal for three-in-a-row.
// Caller must hold g.mu.
func (g *Game) checkWin() (ttt.Role, bool) {
	for _, line := range lines {
		a, b, c := g.cells[line[0]], g.cells[line[1]], g.cells[line[2]]
		if a != ttt.NONE && a == b && b == c {
			return a, true
		}
	}
	return ttt.NONE, false
}

// full reports whether every cell is occupied. Caller must hold g.mu.
func (g *Game) full() bool {
	for i := 1; i <= 9; i++ {
		if g.cells[i] == ttt.NONE {
			return false
		}
	}
	return true
}

// UnparseState renders the board as a fixed 18-byte string: three rows
// of "C|C|C\n" where C is the cell's symbol, or a space if empty.
func (g *Game) UnparseState() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var sb strings.Builder
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			cell := row*3 + col + 1
			role := g.cells[cell]
			switch role {
			case ttt.NONE:
				sb.WriteByte(' ')
			default:
				sb.WriteByte(g.symbols[role])
			}
			if col < 2 {
				sb.WriteByte('|')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// String renders the board for logging.
func (g *Game) String() string {
	return fmt.Sprintf("Game{turn=%s over=%v}", g.expectedTurn, g.over)
}
