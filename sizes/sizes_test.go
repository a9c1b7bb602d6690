package sizes

import (
	"errors"
	"testing"

	"go.uber.org/multierr"

	"img2webp/common"
	"img2webp/config"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	return cfg
}

func TestSizes_AspectRatio(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Sizes["GSTFRPTA15"] = [][]int{{900, 0}, {500, 0}}

	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	list, err := r.Sizes("GSTFRPTA15")
	if err != nil {
		t.Fatalf("Sizes() error = %v", err)
	}
	want := [][2]int{{900, 450}, {500, 250}}
	if len(list) != len(want) {
		t.Fatalf("got %d sizes, want %d", len(list), len(want))
	}
	for i, s := range list {
		w, h := s.Target(1600, 800)
		if w != want[i][0] || h != want[i][1] {
			t.Errorf("size %d: Target(1600, 800) = %dx%d, want %dx%d", i, w, h, want[i][0], want[i][1])
		}
	}
}

func TestSizes_DefaultCodes(t *testing.T) {
	r, err := New(defaultConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	codes := []string{
		"COMFRPTC09", "COMFRPTC12", "COMFRPTC14", "COMFRPTC13", "COMFRPTC34", "COMFRPTC15", "COMFRPTC23",
		"COMFRPTC17", "COMFRPTC21", "GSTFRPTA15", "COMFRPTC03", "COMFRPTC30", "THUMBNAIL",
	}
	for _, code := range codes {
		if list, err := r.Sizes(code); err != nil || len(list) == 0 {
			t.Errorf("Sizes(%s) = %v, %v", code, list, err)
		}
	}
	list, _ := r.Sizes("THUMBNAIL")
	if len(list) != 2 || list[0] != (Size{900, 600}) || list[1] != (Size{500, 333}) {
		t.Errorf("THUMBNAIL sizes = %v", list)
	}
}

func TestSize_Target(t *testing.T) {
	tests := []struct {
		size         Size
		origW, origH int
		wantW, wantH int
	}{
		{Size{360, 360}, 1000, 500, 360, 360},
		{Size{600, 0}, 1000, 333, 600, 200},
		{Size{600, 0}, 1000, 335, 600, 201},
		{Size{600, 0}, 0, 0, 600, 0},
	}
	for _, tt := range tests {
		w, h := tt.size.Target(tt.origW, tt.origH)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("%v.Target(%d, %d) = %dx%d, want %dx%d", tt.size, tt.origW, tt.origH, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestSizes_Unconfigured(t *testing.T) {
	r, err := New(defaultConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = r.Sizes("COMFRPTC99")
	if !errors.Is(err, common.ErrConfiguration) {
		t.Fatalf("Sizes() error = %v, want ConfigurationError", err)
	}
	var ce *common.Error
	if !errors.As(err, &ce) || ce.Code != "COMFRPTC99" {
		t.Errorf("error context = %v", err)
	}
}

func TestNew_InvalidEntries(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Sizes["BAD1"] = [][]int{{100}}
	cfg.Sizes["BAD2"] = [][]int{{100, 0}}
	cfg.Breakpoints["BAD2"] = config.BreakpointConfig{
		SourceDefault: config.WidthChoice{Width: 100},
		ImgDefault:    config.WidthChoice{Width: 300},
	}
	cfg.Breakpoints["BAD3"] = config.BreakpointConfig{
		SourceDefault: config.WidthChoice{Width: 100},
		ImgDefault:    config.WidthChoice{Width: 100},
	}

	r, err := New(cfg)
	if err == nil {
		t.Fatal("New() expected error")
	}
	if n := len(multierr.Errors(err)); n != 3 {
		t.Errorf("got %d errors, want 3: %v", n, err)
	}
	for _, code := range []string{"BAD1", "BAD2"} {
		if _, err := r.Sizes(code); !errors.Is(err, common.ErrConfiguration) {
			t.Errorf("Sizes(%s) error = %v", code, err)
		}
	}
	if _, ok := r.Breakpoints("BAD2"); ok {
		t.Error("invalid breakpoints must not be available")
	}
	// other codes are not affected
	if _, err := r.Sizes("COMFRPTC09"); err != nil {
		t.Errorf("Sizes(COMFRPTC09) error = %v", err)
	}
	if _, ok := r.Breakpoints("COMFRPTC12"); !ok {
		t.Error("Breakpoints(COMFRPTC12) missing")
	}
}

func TestChoice(t *testing.T) {
	tests := []struct {
		name string
		wc   config.WidthChoice
		err  bool
	}{
		{"single", config.WidthChoice{Width: 600}, false},
		{"pair", config.WidthChoice{Normal: 900, Carousel: 1800}, false},
		{"empty", config.WidthChoice{}, true},
		{"half pair", config.WidthChoice{Normal: 900}, true},
		{"both", config.WidthChoice{Width: 600, Normal: 900, Carousel: 1800}, true},
		{"negative", config.WidthChoice{Width: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newChoice(tt.wc)
			if (err != nil) != tt.err {
				t.Fatalf("newChoice() error = %v, wantErr %v", err, tt.err)
			}
			if err != nil {
				return
			}
			if c.Paired() {
				if c.Pick(common.DisplayContextCarousel) != tt.wc.Carousel || c.Pick(common.DisplayContextNormal) != tt.wc.Normal {
					t.Errorf("Pick() mismatch for %+v", c)
				}
			} else if c.Pick(common.DisplayContextCarousel) != tt.wc.Width {
				t.Errorf("Pick() = %d, want %d", c.Pick(common.DisplayContextCarousel), tt.wc.Width)
			}
		})
	}
}

func TestBreakpoints_Select(t *testing.T) {
	r, err := New(defaultConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		code string
		role common.ElementRole
		cond Condition
		want Choice
	}{
		{"COMFRPTC09", common.ElementRoleSource, Condition{MinWidth: 1041, HasWidth: true, Resolution: 2, HasResolution: true}, Choice{Width: 1800}},
		{"COMFRPTC09", common.ElementRoleSource, Condition{MinWidth: 1041, HasWidth: true}, Choice{Width: 1200}},
		{"COMFRPTC09", common.ElementRoleSource, Condition{MinWidth: 1400, HasWidth: true}, Choice{Width: 1200}},
		{"COMFRPTC09", common.ElementRoleSource, Condition{Resolution: 2, HasResolution: true}, Choice{Width: 900}},
		{"COMFRPTC09", common.ElementRoleSource, Condition{MinWidth: 800, HasWidth: true}, Choice{Width: 500}},
		{"COMFRPTC09", common.ElementRoleSource, Condition{}, Choice{Width: 500}},
		{"COMFRPTC09", common.ElementRoleImg, Condition{}, Choice{Width: 900}},
		{"COMFRPTC12", common.ElementRoleSource, Condition{MinWidth: 1562, HasWidth: true, Resolution: 2, HasResolution: true}, Choice{Normal: 900, Carousel: 1800}},
		{"COMFRPTC12", common.ElementRoleSource, Condition{MinWidth: 1200, HasWidth: true, Resolution: 2, HasResolution: true}, Choice{Normal: 900, Carousel: 1200}},
		{"COMFRPTC12", common.ElementRoleSource, Condition{MinWidth: 1562, HasWidth: true}, Choice{Width: 900}},
		{"COMFRPTC23", common.ElementRoleSource, Condition{Resolution: 2, HasResolution: true}, Choice{Width: 240}},
		{"COMFRPTC23", common.ElementRoleSource, Condition{MinWidth: 1440, HasWidth: true, Resolution: 3, HasResolution: true}, Choice{Width: 360}},
		{"COMFRPTC23", common.ElementRoleImg, Condition{MinWidth: 1440, HasWidth: true}, Choice{Width: 120}},
	}
	for _, tt := range tests {
		bp, ok := r.Breakpoints(tt.code)
		if !ok {
			t.Fatalf("Breakpoints(%s) missing", tt.code)
		}
		if got := bp.Select(tt.role, tt.cond); got != tt.want {
			t.Errorf("%s %v %+v: Select() = %+v, want %+v", tt.code, tt.role, tt.cond, got, tt.want)
		}
	}
}

func TestBreakpoints_Sorted(t *testing.T) {
	bp, err := newBreakpoints("X", config.BreakpointConfig{
		SourceDefault: config.WidthChoice{Width: 100},
		ImgDefault:    config.WidthChoice{Width: 100},
		Thresholds: []config.ThresholdConfig{
			{MinWidth: 500, WidthChoice: config.WidthChoice{Width: 100}},
			{MinWidth: 1000, WidthChoice: config.WidthChoice{Width: 200}},
			{MinWidth: 1000, MinResolution: 2, WidthChoice: config.WidthChoice{Width: 200}},
		},
	}, []Size{{100, 0}, {200, 0}})
	if err != nil {
		t.Fatalf("newBreakpoints() error = %v", err)
	}
	got := bp.Thresholds
	if got[0].MinWidth != 1000 || got[0].MinResolution != 2 || got[1].MinWidth != 1000 || got[2].MinWidth != 500 {
		t.Errorf("thresholds not sorted: %+v", got)
	}
}
