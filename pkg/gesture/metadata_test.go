package gesture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-gesture/pkg/frame"
)

func testMetadata() Metadata {
	m := Metadata{Classes: []string{"A", "B", "nothing"}, NoneLabel: "nothing", MinConfidence: 0.5}
	m.ApplyDefaults()
	return m
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		scores    []float32
		softmax   bool
		wantLabel string
	}{
		{"clear winner", []float32{0.1, 0.8, 0.1}, false, "B"},
		{"none class wins", []float32{0.1, 0.2, 0.7}, false, ""},
		{"below threshold", []float32{0.4, 0.3, 0.3}, false, ""},
		{"logits with softmax", []float32{5, 0, 0}, true, "A"},
		{"flat logits with softmax", []float32{1, 1, 1}, true, ""},
		{"extra scores ignored", []float32{0.9, 0.05, 0.05, 10}, false, "A"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := testMetadata()
			m.Softmax = tc.softmax
			pred, err := Decide(tc.scores, m)
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if pred.Label != tc.wantLabel {
				t.Errorf("Label = %q, want %q", pred.Label, tc.wantLabel)
			}
			if tc.wantLabel == "" && pred.Confidence != 0 {
				t.Errorf("Confidence = %f for no gesture, want 0", pred.Confidence)
			}
		})
	}
}

func TestDecide_TooFewScores(t *testing.T) {
	_, err := Decide([]float32{1}, testMetadata())
	if !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("expected ErrInvalidMetadata, got %v", err)
	}
}

func TestTensor_Layouts(t *testing.T) {
	buf := &frame.PixelBuffer{Pix: make([]uint8, frame.Width*frame.Height*frame.Channels)}
	// pixel 1 = (255, 0, 51)
	buf.Pix[3], buf.Pix[4], buf.Pix[5] = 255, 0, 51

	m := testMetadata()
	nchw := Tensor(buf, m)
	plane := frame.Width * frame.Height
	if nchw[1] != 1 || nchw[plane+1] != 0 || nchw[2*plane+1] != 0.2 {
		t.Errorf("NCHW pixel 1 = %v,%v,%v", nchw[1], nchw[plane+1], nchw[2*plane+1])
	}

	m.Layout = LayoutNHWC
	nhwc := Tensor(buf, m)
	if nhwc[3] != 1 || nhwc[4] != 0 || nhwc[5] != 0.2 {
		t.Errorf("NHWC pixel 1 = %v", nhwc[3:6])
	}

	m.Mean = []float32{0.5, 0.5, 0.5}
	m.Std = []float32{0.5, 0.5, 0.5}
	norm := Tensor(buf, m)
	if norm[3] != 1 || norm[4] != -1 {
		t.Errorf("normalized pixel 1 = %v", norm[3:6])
	}
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "gesture.yaml")
	os.WriteFile(yamlPath, []byte(`
classes: [A, B, C, nothing]
none_label: nothing
min_confidence: 0.6
softmax: true
layout: NHWC
`), 0o644)

	m, err := LoadMetadata(yamlPath)
	if err != nil {
		t.Fatalf("LoadMetadata yaml: %v", err)
	}
	if len(m.Classes) != 4 || m.NoneLabel != "nothing" || !m.Softmax {
		t.Errorf("yaml metadata = %+v", m)
	}
	if m.Layout != LayoutNHWC || m.InputShape[3] != 3 {
		t.Errorf("layout defaults = %s %v", m.Layout, m.InputShape)
	}
	if m.InputName != "input" || m.ImageSize != frame.Width {
		t.Errorf("defaults not applied: %+v", m)
	}

	jsonPath := filepath.Join(dir, "gesture.json")
	os.WriteFile(jsonPath, []byte(`{"classes":["hello","thanks"],"input_shape":[1,3,224,224],"output_shape":[1,2]}`), 0o644)
	m, err = LoadMetadata(jsonPath)
	if err != nil {
		t.Fatalf("LoadMetadata json: %v", err)
	}
	if m.Classes[1] != "thanks" || m.Layout != LayoutNCHW {
		t.Errorf("json metadata = %+v", m)
	}
}

func TestLoadMetadata_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"no classes", `{}`, ErrNoClasses},
		{"wrong size", `{"classes":["A"],"image_size":128}`, ErrInvalidMetadata},
		{"bad layout", `{"classes":["A"],"layout":"chwn"}`, ErrInvalidMetadata},
		{"zero std", `{"classes":["A"],"std":[1,0,1]}`, ErrInvalidMetadata},
		{"bad input shape", `{"classes":["A"],"input_shape":[1,3,128,128]}`, ErrInvalidMetadata},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, "m.json")
			os.WriteFile(path, []byte(tc.content), 0o644)
			if _, err := LoadMetadata(path); !errors.Is(err, tc.want) {
				t.Errorf("LoadMetadata = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := LoadMetadata(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
