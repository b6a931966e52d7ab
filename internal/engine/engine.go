// Package engine drives tile state transitions on a generated board.
package engine

import (
	"errors"
	"fmt"

	"github.com/lox/mineduel/internal/board"
)

// ErrInvalidCoordinate is returned for operations outside the board.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Engine owns the mutable play state of one board. There is no loss condition:
// revealing a mine is ignored, and the board is cleared once every safe tile
// has been revealed.
type Engine struct {
	board        *board.Board
	active       bool
	revealed     int
	flags        int
	correctFlags int
}

// New returns an active engine bound to b.
func New(b *board.Board) *Engine {
	return &Engine{board: b, active: true}
}

// Board returns the underlying board.
func (e *Engine) Board() *board.Board { return e.board }

// Active reports whether the engine still accepts input.
func (e *Engine) Active() bool { return e.active }

// Freeze stops the engine from accepting further input.
func (e *Engine) Freeze() { e.active = false }

// Revealed returns the number of revealed tiles.
func (e *Engine) Revealed() int { return e.revealed }

// Flags returns the number of flagged tiles.
func (e *Engine) Flags() int { return e.flags }

// CorrectFlags returns the number of flags sitting on mines.
func (e *Engine) CorrectFlags() int { return e.correctFlags }

// Tile returns the tile at (x, y).
func (e *Engine) Tile(x, y int) (*board.Tile, error) {
	t := e.board.Tile(x, y)
	if t == nil {
		return nil, fmt.Errorf("%w: (%d,%d)", ErrInvalidCoordinate, x, y)
	}
	return t, nil
}

// Reveal uncovers the tile at (x, y) and returns how many tiles changed to
// Revealed. A zero tile flood-fills: every hidden neighbour of a zero tile is
// revealed, and zero neighbours are expanded in turn. Flagged tiles stop the fill.
func (e *Engine) Reveal(x, y int) (int, error) {
	t, err := e.Tile(x, y)
	if err != nil {
		return 0, err
	}
	if !e.active || t.State != board.Hidden || t.IsMine {
		return 0, nil
	}

	before := e.revealed
	e.markRevealed(t)

	if t.AdjacentMines == 0 {
		stack := []board.Position{t.Position}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			for _, n := range e.board.Neighbors(p.X, p.Y) {
				nt := e.board.Tile(n.X, n.Y)
				if nt.State != board.Hidden {
					continue
				}
				e.markRevealed(nt)
				if nt.AdjacentMines == 0 {
					stack = append(stack, n)
				}
			}
		}
	}

	return e.revealed - before, nil
}

func (e *Engine) markRevealed(t *board.Tile) {
	if t.State == board.Revealed {
		return
	}
	t.State = board.Revealed
	e.revealed++
}

// ToggleFlag switches the tile at (x, y) between Hidden and Flagged.
func (e *Engine) ToggleFlag(x, y int) error {
	t, err := e.Tile(x, y)
	if err != nil {
		return err
	}
	if !e.active {
		return nil
	}

	switch t.State {
	case board.Hidden:
		t.State = board.Flagged
		e.flags++
		if t.IsMine {
			e.correctFlags++
		}
	case board.Flagged:
		t.State = board.Hidden
		e.flags--
		if t.IsMine {
			e.correctFlags--
		}
	}
	return nil
}

// IsCleared reports whether every safe tile has been revealed.
func (e *Engine) IsCleared() bool {
	return e.revealed == e.board.SafeTiles()
}

// NextSafe returns the first hidden safe tile in row-major order.
func (e *Engine) NextSafe() (board.Position, bool) {
	for x := 0; x < e.board.Width; x++ {
		for y := 0; y < e.board.Height; y++ {
			t := e.board.Tile(x, y)
			if t.State == board.Hidden && !t.IsMine {
				return t.Position, true
			}
		}
	}
	return board.Position{}, false
}
