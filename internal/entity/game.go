package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
)

type Symbol string

const (
	SymbolNone Symbol = ""
	SymbolX    Symbol = "X"
	SymbolO    Symbol = "O"
)

// Opponent returns the other playing symbol.
func (s Symbol) Opponent() Symbol {
	if s == SymbolX {
		return SymbolO
	}
	return SymbolX
}

type GameState string

const (
	GameActive   GameState = "active"
	GameFinished GameState = "finished"
)

const BoardSize = 9

// WinCombos are checked in this order, the first complete line wins.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Game is the state machine of one 3x3 match. It knows nothing about players or sessions.
type Game struct {
	Cells       [BoardSize]Symbol
	CurrentTurn Symbol
	State       GameState
	Winner      Symbol
	WinningLine []int
}

func NewGame() *Game {
	return &Game{
		CurrentTurn: SymbolX,
		State:       GameActive,
	}
}

func (that *Game) ApplyMove(symbol Symbol, cell int) error {
	if that.IsFinished() {
		return apperror.ErrGameFinished
	}

	if symbol != that.CurrentTurn {
		return apperror.ErrWrongTurn
	}

	if cell < 0 || cell >= BoardSize {
		return fmt.Errorf("%w: cell %d", apperror.ErrOutOfRange, cell)
	}

	if that.Cells[cell] != SymbolNone {
		return apperror.ErrCellOccupied
	}

	that.Cells[cell] = symbol

	if line, ok := that.winningLine(symbol); ok {
		that.Winner = symbol
		that.WinningLine = line
		that.State = GameFinished
		return nil
	}

	if that.isBoardFull() {
		that.Winner = SymbolNone
		that.State = GameFinished
		return nil
	}

	that.CurrentTurn = symbol.Opponent()

	return nil
}

// ForceFinish ends the game in favour of winner without a winning line. Used for forfeits.
func (that *Game) ForceFinish(winner Symbol) {
	that.State = GameFinished
	that.Winner = winner
	that.WinningLine = nil
}

func (that *Game) IsFinished() bool {
	return that.State == GameFinished
}

func (that *Game) IsDraw() bool {
	return that.IsFinished() && that.Winner == SymbolNone
}

// MovesMade counts occupied cells.
func (that *Game) MovesMade() int {
	moves := 0
	for _, cell := range that.Cells {
		if cell != SymbolNone {
			moves++
		}
	}
	return moves
}

func (that *Game) winningLine(symbol Symbol) ([]int, bool) {
	for _, combo := range WinCombos {
		if that.Cells[combo[0]] == symbol && that.Cells[combo[1]] == symbol && that.Cells[combo[2]] == symbol {
			return []int{combo[0], combo[1], combo[2]}, true
		}
	}

	return nil, false
}

func (that *Game) isBoardFull() bool {
	for _, cell := range that.Cells {
		if cell == SymbolNone {
			return false
		}
	}
	return true
}
