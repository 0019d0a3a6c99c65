package plugin

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type stubValidator struct{}

func (stubValidator) ParseDocument(string, string) (int, error) { return 0, nil }
func (stubValidator) Info() any                                 { return nil }

type stubRenderer struct{}

func (stubRenderer) CreatePDF(any, string, string, string) error { return nil }

func stubPair() Pair {
	return Pair{Validator: stubValidator{}, Renderer: stubRenderer{}}
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, args ...any) {
	l.lines = append(l.lines, format)
}

func TestRegistry_ResolveRegisteredType(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("D112", stubPair())

	pair, err := reg.Resolve("d112")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pair.Validator == nil || pair.Renderer == nil {
		t.Fatalf("expected complete pair, got %+v", pair)
	}
	if !reg.Has(" D112 ") {
		t.Fatalf("expected Has to normalise the id")
	}
}

func TestRegistry_ResolveUnknownType(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("d999")
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if !strings.Contains(err.Error(), "d999") {
		t.Fatalf("expected type id in error, got %q", err)
	}
}

func TestRegistry_RejectsDuplicatesAndIncompletePairs(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("d100", stubPair())

	if err := reg.Register("d100", stubPair()); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := reg.Register("d101", Pair{Validator: stubValidator{}}); err == nil {
		t.Fatalf("expected missing renderer error")
	}
	if err := reg.Register("", stubPair()); err == nil {
		t.Fatalf("expected empty id error")
	}
}

func TestRegistry_SealedRejectsWrites(t *testing.T) {
	reg := NewRegistry()
	reg.Seal()
	if err := reg.Register("d100", stubPair()); err == nil {
		t.Fatalf("expected sealed registry to reject registration")
	}
}

func TestRegistry_TypesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []TypeID{"d394", "d100", "d112"} {
		reg.MustRegister(id, stubPair())
	}
	want := []TypeID{"d100", "d112", "d394"}
	if diff := cmp.Diff(want, reg.Types()); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
}

func TestTypeNaming(t *testing.T) {
	cases := []struct {
		name string
		got  TypeID
		want TypeID
	}{
		{name: "tag", got: TypeFromTag("declaratie112"), want: "d112"},
		{name: "tag upper", got: TypeFromTag("Declaratie394"), want: "declaratie394"},
		{name: "package trailing dot", got: TypeFromPackage("dec.d112."), want: "d112"},
		{name: "package validator suffix", got: TypeFromPackage("dec.d112validator"), want: "d112"},
		{name: "bare package", got: TypeFromPackage("D300"), want: "d300"},
		{name: "normalize", got: NormalizeType("  D394 "), want: "d394"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("want %q, got %q", tc.want, tc.got)
			}
		})
	}
	if got := TagFromType("d112"); got != "declaratie112" {
		t.Fatalf("expected declaratie112, got %q", got)
	}
}

func TestBuild_SkipsUnresolvableEntries(t *testing.T) {
	catalog := NewCatalog()
	catalog.MustRegister("stub", func(Entry) (Pair, error) { return stubPair(), nil })
	catalog.MustRegister("broken", func(Entry) (Pair, error) { return Pair{}, errors.New("jar missing") })

	logger := &recordingLogger{}
	reg, err := Build(catalog, []Entry{
		{Package: "dec.d112.", Family: "stub"},
		{Package: "dec.d300.", Family: "missing"},
		{Package: "dec.d394.", Family: "broken"},
		{Package: "other.d112", Family: "stub"},
		{Package: "dec.x.", Type: "D205", Family: "STUB"},
	}, logger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := []TypeID{"d112", "d205"}
	if diff := cmp.Diff(want, reg.Types()); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}

	skipped := 0
	for _, line := range logger.lines {
		if strings.HasPrefix(line, "plugin: skip entry") {
			skipped++
		}
	}
	if skipped != 3 {
		t.Fatalf("expected 3 skipped entries logged, got %d (%v)", skipped, logger.lines)
	}

	if err := reg.Register("d999", stubPair()); err == nil {
		t.Fatalf("expected built registry to be sealed")
	}
}

func TestBuild_RequiresCatalog(t *testing.T) {
	if _, err := Build(nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil catalog")
	}
}

func TestEntry_DecodeOptions(t *testing.T) {
	entry := Entry{
		Package: "dec.d112.",
		Options: map[string]any{
			"command": []any{"java", "-jar", "x.jar"},
			"timeout": "30s",
		},
	}
	var opts struct {
		Command []string `yaml:"command"`
		Timeout string   `yaml:"timeout"`
	}
	if err := entry.DecodeOptions(&opts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff([]string{"java", "-jar", "x.jar"}, opts.Command); diff != "" {
		t.Fatalf("command mismatch (-want +got):\n%s", diff)
	}
	if opts.Timeout != "30s" {
		t.Fatalf("expected timeout 30s, got %q", opts.Timeout)
	}
}
