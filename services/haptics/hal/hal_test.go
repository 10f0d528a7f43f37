package hal

import (
	"context"
	"errors"
	"testing"

	"haptics-go/errcode"
)

func TestParseVersion(t *testing.T) {
	cases := map[string]Version{"1.0": V1_0, "v1.2": V1_2, " 1.3 ": V1_3, "AIDL": AIDL}
	for in, want := range cases {
		if got, ok := ParseVersion(in); !ok || got != want {
			t.Fatalf("ParseVersion(%q) = %v,%v want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseVersion("2.0"); ok {
		t.Fatal("2.0 should not parse")
	}
	if V1_1.String() != "1.1" || Version(99).String() != "unknown" {
		t.Fatal("String mismatch")
	}
}

func TestSentinelsMatchWrappedCodes(t *testing.T) {
	err := errcode.Wrap(errcode.DeadObject, "on", errors.New("binder died"))
	if !errors.Is(err, ErrDeadObject) {
		t.Fatalf("wrapped dead object not matched: %v", err)
	}
	if errors.Is(err, ErrUnsupported) {
		t.Fatal("dead object matched unsupported")
	}
}

func TestUnimplementedReportsUnsupported(t *testing.T) {
	var u Unimplemented
	ctx := context.Background()
	if err := u.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := u.Off(ctx); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Off: %v", err)
	}
	if _, err := u.PerformEffect(ctx, 0, 0, nil); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("PerformEffect: %v", err)
	}
	if _, _, err := u.CompositionLimits(ctx); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("CompositionLimits: %v", err)
	}
}

func TestNewestFirstAndFilter(t *testing.T) {
	mk := func(v Version) Connector {
		return NewConnector(v, func(context.Context) (Backend, error) { return nil, errors.New("absent") })
	}
	cs := NewestFirst([]Connector{mk(V1_0), mk(AIDL), mk(V1_2)})
	if cs[0].Version() != AIDL || cs[1].Version() != V1_2 || cs[2].Version() != V1_0 {
		t.Fatalf("order = %v %v %v", cs[0].Version(), cs[1].Version(), cs[2].Version())
	}
	f, err := FilterVersions(cs, []string{"1.0", "aidl"})
	if err != nil || len(f) != 2 {
		t.Fatalf("filter = %d, %v", len(f), err)
	}
	if _, err := FilterVersions(cs, []string{"9.9"}); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestRegisterBuilderDuplicatePanics(t *testing.T) {
	b := BuilderFunc(func(context.Context, BuildInput) ([]Connector, error) { return nil, nil })
	RegisterBuilder("test-dup", b)
	if _, ok := LookupBuilder("test-dup"); !ok {
		t.Fatal("builder not found")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterBuilder("test-dup", b)
}
