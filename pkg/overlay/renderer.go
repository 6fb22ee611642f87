// Package overlay draws landmark wireframes and the motion banner onto frames.
package overlay

import (
	"image"
	"image/color"

	"github.com/teslashibe/go-motioncam/pkg/landmark"
	"gocv.io/x/gocv"
)

// MotionText is drawn while the alert is active.
const MotionText = "Motion Detected!"

// DrawingSpec is the color and thickness of one element.
type DrawingSpec struct {
	Color     color.RGBA
	Thickness int
	Radius    int
}

// Style pairs the point and line specs of a landmark category.
type Style struct {
	Landmark   DrawingSpec
	Connection DrawingSpec
}

// bgr builds a color from OpenCV channel order.
func bgr(b, g, r uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// DefaultStyles returns one fixed style per category.
func DefaultStyles() map[landmark.Category]Style {
	return map[landmark.Category]Style{
		landmark.Face: {
			Landmark:   DrawingSpec{Color: bgr(80, 110, 10), Thickness: 1, Radius: 1},
			Connection: DrawingSpec{Color: bgr(80, 255, 121), Thickness: 1, Radius: 1},
		},
		landmark.Pose: {
			Landmark:   DrawingSpec{Color: bgr(80, 22, 10), Thickness: 2, Radius: 4},
			Connection: DrawingSpec{Color: bgr(80, 44, 121), Thickness: 2, Radius: 2},
		},
		landmark.LeftHand: {
			Landmark:   DrawingSpec{Color: bgr(121, 22, 76), Thickness: 2, Radius: 4},
			Connection: DrawingSpec{Color: bgr(121, 44, 250), Thickness: 2, Radius: 2},
		},
		landmark.RightHand: {
			Landmark:   DrawingSpec{Color: bgr(245, 117, 66), Thickness: 2, Radius: 4},
			Connection: DrawingSpec{Color: bgr(245, 66, 230), Thickness: 2, Radius: 2},
		},
	}
}

// Renderer handles landmark and status overlays.
type Renderer struct {
	styles map[landmark.Category]Style

	textOrigin    image.Point
	textScale     float64
	textColor     color.RGBA
	textThickness int

	// minVisibility hides points the model marked as likely occluded.
	minVisibility float64
}

// NewRenderer creates a renderer with the default styles.
func NewRenderer() *Renderer {
	return &Renderer{
		styles:        DefaultStyles(),
		textOrigin:    image.Pt(50, 50),
		textScale:     1,
		textColor:     bgr(0, 0, 255),
		textThickness: 2,
		minVisibility: 0.5,
	}
}

// Draw renders r onto img in place, plus the motion banner when alerting.
// The result is only read.
func (rd *Renderer) Draw(img *gocv.Mat, r landmark.Result, alerting bool) {
	if img.Empty() {
		return
	}

	if alerting {
		gocv.PutTextWithParams(img, MotionText, rd.textOrigin, gocv.FontHersheySimplex,
			rd.textScale, rd.textColor, rd.textThickness, gocv.LineAA, false)
	}

	for _, c := range landmark.Categories {
		set := r.Get(c)
		if !set.Present() {
			continue
		}
		rd.drawSet(img, set, landmark.Connections(c), rd.styles[c])
	}
}

func (rd *Renderer) drawSet(img *gocv.Mat, set landmark.Set, conns []landmark.Connection, style Style) {
	w, h := img.Cols(), img.Rows()

	for _, conn := range conns {
		if conn.From >= len(set) || conn.To >= len(set) {
			continue
		}
		a, b := set[conn.From], set[conn.To]
		if !rd.visible(a) || !rd.visible(b) {
			continue
		}
		gocv.Line(img, toPixel(a, w, h), toPixel(b, w, h),
			style.Connection.Color, style.Connection.Thickness)
	}

	for _, p := range set {
		if !rd.visible(p) {
			continue
		}
		gocv.Circle(img, toPixel(p, w, h), style.Landmark.Radius,
			style.Landmark.Color, style.Landmark.Thickness)
	}
}

// visible treats an unset visibility as visible.
func (rd *Renderer) visible(p landmark.Point) bool {
	return p.Visibility == 0 || p.Visibility >= rd.minVisibility
}

func toPixel(p landmark.Point, w, h int) image.Point {
	return image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
}
