package overlay

import (
	"image"
	"reflect"
	"testing"

	"github.com/teslashibe/go-motioncam/pkg/landmark"
	"gocv.io/x/gocv"
)

func blankFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC3)
}

func sum(m gocv.Mat) float64 {
	s := m.Sum()
	return s.Val1 + s.Val2 + s.Val3
}

func regionSum(m gocv.Mat, r image.Rectangle) float64 {
	region := m.Region(r)
	defer region.Close()
	return sum(region)
}

// bannerArea covers the text drawn at (50, 50).
var bannerArea = image.Rect(40, 20, 310, 60)

func TestDraw_BannerOnlyWhenAlerting(t *testing.T) {
	rd := NewRenderer()

	quiet := blankFrame()
	defer quiet.Close()
	rd.Draw(&quiet, landmark.Result{}, false)
	if sum(quiet) != 0 {
		t.Error("nothing should be drawn without landmarks or alert")
	}

	alert := blankFrame()
	defer alert.Close()
	rd.Draw(&alert, landmark.Result{}, true)
	if regionSum(alert, bannerArea) == 0 {
		t.Error("banner should be drawn while alerting")
	}
}

func TestDraw_EachCategoryDraws(t *testing.T) {
	hand := make(landmark.Set, landmark.HandLandmarks)
	for i := range hand {
		hand[i] = landmark.Point{X: 0.3 + float64(i)*0.01, Y: 0.6}
	}
	pose := make(landmark.Set, landmark.PoseLandmarks)
	for i := range pose {
		pose[i] = landmark.Point{X: 0.2 + float64(i)*0.01, Y: 0.8}
	}

	tests := []struct {
		name   string
		result landmark.Result
	}{
		{"face", landmark.Result{Face: landmark.Set{{X: 0.5, Y: 0.5}, {X: 0.6, Y: 0.5}}}},
		{"pose", landmark.Result{Pose: pose}},
		{"left hand", landmark.Result{LeftHand: hand}},
		{"right hand", landmark.Result{RightHand: hand}},
	}

	rd := NewRenderer()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img := blankFrame()
			defer img.Close()

			rd.Draw(&img, tc.result, false)
			if sum(img) == 0 {
				t.Error("expected landmarks to be drawn")
			}
			if regionSum(img, bannerArea) != 0 {
				t.Error("banner drawn without alert")
			}
		})
	}
}

func TestDraw_DoesNotMutateResult(t *testing.T) {
	r := landmark.Result{
		Face:     landmark.Set{{X: 0.5, Y: 0.5, Z: 0.1}},
		LeftHand: landmark.Set{{X: 0.2, Y: 0.3, Visibility: 0.9}},
	}
	before := landmark.Result{
		Face:     append(landmark.Set{}, r.Face...),
		LeftHand: append(landmark.Set{}, r.LeftHand...),
	}

	img := blankFrame()
	defer img.Close()
	NewRenderer().Draw(&img, r, true)

	if !reflect.DeepEqual(r, before) {
		t.Errorf("result mutated: got %+v, want %+v", r, before)
	}
}

func TestDraw_HiddenPointsSkipped(t *testing.T) {
	img := blankFrame()
	defer img.Close()

	r := landmark.Result{Pose: landmark.Set{{X: 0.5, Y: 0.5, Visibility: 0.1}}}
	NewRenderer().Draw(&img, r, false)

	if sum(img) != 0 {
		t.Error("occluded landmark should not be drawn")
	}
}

func TestDraw_EmptyImage(t *testing.T) {
	img := gocv.NewMat()
	defer img.Close()

	// Must not panic
	NewRenderer().Draw(&img, landmark.Result{Face: landmark.Set{{X: 0.5, Y: 0.5}}}, true)
}

func TestDefaultStyles_Distinct(t *testing.T) {
	styles := DefaultStyles()
	if len(styles) != len(landmark.Categories) {
		t.Fatalf("expected %d styles, got %d", len(landmark.Categories), len(styles))
	}

	seen := map[Style]landmark.Category{}
	for c, s := range styles {
		if other, ok := seen[s]; ok {
			t.Errorf("%s and %s share a style", c, other)
		}
		seen[s] = c
	}
}
