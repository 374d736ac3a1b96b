// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package chart draws resource lifetime charts: one row per resource, one
// column per scheduled pass-group.
package chart

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Bar is the live range of one resource, in column indices.
type Bar struct {
	Label    string
	First    int
	Last     int
	Imported bool
}

// Layout constants in pixels.
const (
	rowHeight = 18
	colWidth  = 56
	padding   = 6
)

var (
	background = color.RGBA{0xfa, 0xfa, 0xfa, 0xff}
	gridColor  = color.RGBA{0xdd, 0xdd, 0xdd, 0xff}
	barColor   = color.RGBA{0x3b, 0x82, 0xc4, 0xff}
	importBar  = color.RGBA{0x9a, 0x9a, 0x9a, 0xff}
	textColor  = color.RGBA{0x20, 0x20, 0x20, 0xff}
)

// ErrEmpty is returned when there is nothing to draw.
var ErrEmpty = errors.New("chart: no columns")

// Chart is a lifetime chart ready to be drawn.
type Chart struct {
	Columns []string
	Bars    []Bar
}

// labelWidth is the width of the widest row label.
func (c *Chart) labelWidth(face font.Face) int {
	w := 0
	for _, b := range c.Bars {
		w = max(w, font.MeasureString(face, b.Label).Ceil())
	}
	return w + 2*padding
}

// Image renders the chart.
func (c *Chart) Image() (*image.RGBA, error) {
	if len(c.Columns) == 0 {
		return nil, ErrEmpty
	}
	face := basicfont.Face7x13
	left := c.labelWidth(face)
	top := rowHeight + padding
	width := left + len(c.Columns)*colWidth + padding
	height := top + len(c.Bars)*rowHeight + padding

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Src: image.NewUniform(textColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()

	for i, col := range c.Columns {
		x := left + i*colWidth
		fill(img, image.Rect(x, top, x+1, height-padding), gridColor)
		d.Dot = fixed.P(x+2, padding+ascent)
		d.DrawString(clip(face, col, colWidth-4))
	}
	for i, b := range c.Bars {
		y := top + i*rowHeight
		d.Dot = fixed.P(padding, y+(rowHeight+ascent)/2-1)
		d.DrawString(b.Label)

		first := min(max(b.First, 0), len(c.Columns)-1)
		last := min(max(b.Last, first), len(c.Columns)-1)
		col := barColor
		if b.Imported {
			col = importBar
		}
		fill(img, image.Rect(left+first*colWidth+3, y+3, left+(last+1)*colWidth-3, y+rowHeight-3), col)
	}
	return img, nil
}

// WritePNG renders the chart as PNG into w.
func (c *Chart) WritePNG(w io.Writer) error {
	img, err := c.Image()
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

func fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// clip shortens s until it fits in width pixels.
func clip(face font.Face, s string, width int) string {
	for len(s) > 1 && font.MeasureString(face, s).Ceil() > width {
		s = s[:len(s)-1]
	}
	return s
}
