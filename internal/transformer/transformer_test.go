package transformer

import "testing"

func TestTargetSizeNoResize(t *testing.T) {
	w, h := targetSize(800, 600, Dimensions{})
	if w != 800 || h != 600 {
		t.Fatalf("expected unchanged 800x600, got %dx%d", w, h)
	}
}

func TestTargetSizeWidthOnlyPreservesAspect(t *testing.T) {
	w, h := targetSize(800, 600, Dimensions{Width: 400})
	if w != 400 {
		t.Fatalf("expected width 400, got %d", w)
	}
	if h != 300 {
		t.Fatalf("expected height 300, got %d", h)
	}
}

func TestTargetSizeHeightOnlyPreservesAspect(t *testing.T) {
	w, h := targetSize(800, 600, Dimensions{Height: 150})
	if h != 150 {
		t.Fatalf("expected height 150, got %d", h)
	}
	if w != 200 {
		t.Fatalf("expected width 200, got %d", w)
	}
}

func TestTargetSizeBoundingBoxUsesSmallerScale(t *testing.T) {
	// 800x600 into a 300x300 box: scale_w=300/800=.375, scale_h=300/600=.5
	// smaller scale wins -> 300x225
	w, h := targetSize(800, 600, Dimensions{Width: 300, Height: 300})
	if w != 300 || h != 225 {
		t.Fatalf("expected 300x225, got %dx%d", w, h)
	}
}

func TestTargetSizeNeverProducesZero(t *testing.T) {
	w, h := targetSize(1000, 1, Dimensions{Width: 1})
	if w < 1 || h < 1 {
		t.Fatalf("expected dims >= 1, got %dx%d", w, h)
	}
}

func TestClampQuality(t *testing.T) {
	cases := map[int]int{0: 1, -5: 1, 1: 1, 80: 80, 100: 100, 150: 100}
	for in, want := range cases {
		if got := clampQuality(in); got != want {
			t.Errorf("clampQuality(%d) = %d, want %d", in, got, want)
		}
	}
}
