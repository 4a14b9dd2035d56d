package render

import (
	"fmt"
	"image"
	"io"

	"github.com/Mshel/neonsnake/internal/game"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const (
	DefaultCellSize = 20
	MaxImageSize    = 2048

	backgroundColor = "#0d0b1e"
	emptyColor      = "#1c1938"
	bodyColor       = "#b026ff"
	headColor       = "#ff4fd8"
	foodColor       = "#21f0c3"
	overlayColor    = "#0d0b1ee0"
	bannerColor     = "#ff4f6d"
)

// DrawBoard paints one square per cell, cellSize pixels wide.
func DrawBoard(state game.State, cellSize int) image.Image {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	side := state.GridSize * cellSize
	dc := gg.NewContext(side, side)

	dc.SetHexColor(backgroundColor)
	dc.Clear()

	size := float64(cellSize)
	gap := size / 10
	radius := size / 5

	for row, cells := range state.Grid() {
		for col, kind := range cells {
			x, y := float64(col)*size, float64(row)*size

			switch kind {
			case game.CellFood:
				dc.SetHexColor(foodColor)
				dc.DrawCircle(x+size/2, y+size/2, size/2-gap)
			case game.CellHead:
				dc.SetHexColor(headColor)
				dc.DrawRoundedRectangle(x+gap/2, y+gap/2, size-gap, size-gap, radius)
			case game.CellBody:
				dc.SetHexColor(bodyColor)
				dc.DrawRoundedRectangle(x+gap, y+gap, size-2*gap, size-2*gap, radius)
			default:
				dc.SetHexColor(emptyColor)
				dc.DrawRoundedRectangle(x+gap, y+gap, size-2*gap, size-2*gap, radius/2)
			}
			dc.Fill()
		}
	}

	if state.IsOver {
		dc.SetHexColor(overlayColor)
		dc.DrawRectangle(0, 0, float64(side), float64(side))
		dc.Fill()
		dc.SetHexColor(bannerColor)
		dc.DrawStringAnchored("GAME OVER", float64(side)/2, float64(side)/2-8, 0.5, 0.5)
		dc.DrawStringAnchored(fmt.Sprintf("Final Score: %d", state.Score), float64(side)/2, float64(side)/2+8, 0.5, 0.5)
	}

	return dc.Image()
}

// WritePNG renders the board and scales it to a size x size square when
// size is positive.
func WritePNG(w io.Writer, state game.State, size int) error {
	if size > MaxImageSize {
		return fmt.Errorf("image size %d exceeds %d", size, MaxImageSize)
	}

	var img image.Image = DrawBoard(state, DefaultCellSize)
	if size > 0 && size != img.Bounds().Dx() {
		img = imaging.Resize(img, size, size, imaging.NearestNeighbor)
	}

	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode board png: %w", err)
	}
	return nil
}
