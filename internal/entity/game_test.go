package entity

import (
	"testing"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGame(t *testing.T) {
	// When: create a new game
	game := NewGame()

	// Then: the board is empty and X opens
	expectedGame := &Game{
		CurrentTurn: SymbolX,
		State:       GameActive,
	}

	require.Equal(t, expectedGame, game)
}

func TestGame_ApplyMove(t *testing.T) {
	t.Run("Successful move", func(t *testing.T) {
		// Given: a new game
		game := NewGame()

		// When: X plays cell 0
		err := game.ApplyMove(SymbolX, 0)
		require.NoError(t, err)

		// Then: the cell is written and the turn passes to O
		expectedGame := &Game{
			Cells:       [BoardSize]Symbol{SymbolX},
			CurrentTurn: SymbolO,
			State:       GameActive,
		}

		require.Equal(t, expectedGame, game)
	})

	t.Run("Error on cell already occupied", func(t *testing.T) {
		// Given: a game where X holds cell 0
		game := NewGame()
		require.NoError(t, game.ApplyMove(SymbolX, 0))
		before := *game

		// When: O plays the same cell
		err := game.ApplyMove(SymbolO, 0)

		// Then: ErrCellOccupied is returned and nothing changes
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		require.Equal(t, before, *game)
	})

	t.Run("Error on playing out of turn", func(t *testing.T) {
		// Given: a new game where it's X's turn
		game := NewGame()

		// When: O tries to move
		err := game.ApplyMove(SymbolO, 1)

		// Then: ErrWrongTurn is returned and the board stays empty
		require.ErrorIs(t, err, apperror.ErrWrongTurn)
		require.Equal(t, NewGame(), game)
	})

	t.Run("Error on cell out of range", func(t *testing.T) {
		for _, cell := range []int{-1, 9, 20} {
			// Given: a new game
			game := NewGame()

			// When: a cell outside the board is played
			err := game.ApplyMove(SymbolX, cell)

			// Then: ErrOutOfRange is returned and the game is untouched
			require.ErrorIs(t, err, apperror.ErrOutOfRange)
			require.Equal(t, NewGame(), game)
		}
	})

	t.Run("Move after game finished", func(t *testing.T) {
		// Given: a game X has won on the top row
		game := NewGame()
		for _, move := range []struct {
			symbol Symbol
			cell   int
		}{
			{SymbolX, 0}, {SymbolO, 3}, {SymbolX, 1}, {SymbolO, 4}, {SymbolX, 2},
		} {
			require.NoError(t, game.ApplyMove(move.symbol, move.cell))
		}

		// When: O tries to keep playing
		err := game.ApplyMove(SymbolO, 5)

		// Then: ErrGameFinished is returned
		assert.ErrorIs(t, err, apperror.ErrGameFinished)
		assert.Equal(t, SymbolNone, game.Cells[5])
	})
}

func TestGame_WinningLines(t *testing.T) {
	for _, combo := range WinCombos {
		// Given: X takes the three cells of the line while O plays two cells outside it
		game := NewGame()
		var others []int
		for cell := 0; cell < BoardSize && len(others) < 2; cell++ {
			if cell != combo[0] && cell != combo[1] && cell != combo[2] {
				others = append(others, cell)
			}
		}

		// When: the moves are played in alternation
		require.NoError(t, game.ApplyMove(SymbolX, combo[0]))
		require.NoError(t, game.ApplyMove(SymbolO, others[0]))
		require.NoError(t, game.ApplyMove(SymbolX, combo[1]))
		require.NoError(t, game.ApplyMove(SymbolO, others[1]))
		require.NoError(t, game.ApplyMove(SymbolX, combo[2]))

		// Then: X wins with exactly that line and the turn is not advanced
		assert.Equal(t, GameFinished, game.State)
		assert.Equal(t, SymbolX, game.Winner)
		assert.Equal(t, []int{combo[0], combo[1], combo[2]}, game.WinningLine)
		assert.Equal(t, SymbolX, game.CurrentTurn)
		assert.ErrorIs(t, game.ApplyMove(SymbolO, firstEmpty(game)), apperror.ErrGameFinished)
	}
}

func TestGame_Draw(t *testing.T) {
	// Given: a sequence of nine alternating moves that never forms a line
	game := NewGame()
	moves := []int{0, 1, 2, 4, 3, 5, 7, 6, 8}

	// When: all moves are played
	symbol := SymbolX
	for i, cell := range moves {
		require.NoError(t, game.ApplyMove(symbol, cell))
		if i < len(moves)-1 {
			assert.Equal(t, GameActive, game.State)
		}
		symbol = symbol.Opponent()
	}

	// Then: the game is finished without a winner or a winning line
	assert.Equal(t, GameFinished, game.State)
	assert.Equal(t, SymbolNone, game.Winner)
	assert.Nil(t, game.WinningLine)
	assert.True(t, game.IsDraw())
	assert.Equal(t, BoardSize, game.MovesMade())
}

func TestGame_ForceFinish(t *testing.T) {
	// Given: a game in progress
	game := NewGame()
	require.NoError(t, game.ApplyMove(SymbolX, 4))

	// When: the game is forced to finish in favour of O
	game.ForceFinish(SymbolO)

	// Then: O wins without a winning line and moves are rejected
	assert.Equal(t, GameFinished, game.State)
	assert.Equal(t, SymbolO, game.Winner)
	assert.Nil(t, game.WinningLine)
	assert.False(t, game.IsDraw())
	assert.ErrorIs(t, game.ApplyMove(SymbolO, 0), apperror.ErrGameFinished)
}

func firstEmpty(game *Game) int {
	for i, cell := range game.Cells {
		if cell == SymbolNone {
			return i
		}
	}
	return 0
}
