package video

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/stockvision/internal/detector"
)

// boxPalette cycles per detection so adjacent boxes stay distinguishable.
var boxPalette = []color.RGBA{
	{R: 0, G: 255, B: 0, A: 255},
	{R: 0, G: 100, B: 255, A: 255},
	{R: 255, G: 100, B: 0, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 128, A: 255},
	{R: 128, G: 255, B: 0, A: 255},
}

// DrawDetections returns a copy of the frame with numbered, scored bounding
// boxes drawn over each detection. The input image is not modified.
func DrawDetections(img image.Image, detections []detector.Detection) (image.Image, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	for i, d := range detections {
		c := boxPalette[i%len(boxPalette)]
		rect := image.Rect(d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)

		gocv.Rectangle(&mat, rect, c, 3)

		label := fmt.Sprintf("#%d (%.2f)", i+1, d.Score)
		size := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.7, 2)

		bg := image.Rect(d.Box.X1, d.Box.Y1-size.Y-8, d.Box.X1+size.X+8, d.Box.Y1)
		gocv.RectangleWithParams(&mat, bg, c, -1, gocv.Line8, 0)

		gocv.PutText(&mat, label,
			image.Pt(d.Box.X1+4, d.Box.Y1-4),
			gocv.FontHersheySimplex, 0.7,
			color.RGBA{R: 255, G: 255, B: 255, A: 255}, 2)
	}

	out, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert result: %w", err)
	}

	return out, nil
}
