package matcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"restitch/pkg/source"
)

func testRegistry() *Registry {
	return NewRegistry(
		[]string{"toBe", "toEqual"},
		[]string{"toMatchSnapshot", "toHaveScreenshot"},
	)
}

func extractText(t *testing.T, text string, policy Policy) *List {
	t.Helper()
	f := source.NewFile("test.js", []byte(text))
	list, err := Extract(context.Background(), f, testRegistry(), policy)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return list
}

func TestExtractEligibility(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		policy Policy
		want   int
	}{
		{"literal number", `expect(1).toBe(2);`, Policy{}, 1},
		{"literal string", `expect(s).toBe("ok");`, Policy{}, 1},
		{"literal booleans", `expect(a).toBe(true); expect(b).toBe(false);`, Policy{}, 2},
		{"literal null", `expect(a).toBe(null);`, Policy{}, 1},
		{"negated number", `expect(n).toBe(-42);`, Policy{}, 1},
		{"positive signed number", `expect(n).toBe(+7);`, Policy{}, 1},
		{"free variable", `expect(1).toBe(x);`, Policy{}, 0},
		{"negated variable", `expect(1).toBe(-x);`, Policy{}, 0},
		{"member access", `expect(1).toBe(a.b);`, Policy{}, 0},
		{"call argument", `expect(1).toBe(f());`, Policy{}, 0},
		{"template string", "expect(a).toBe(`tpl`);", Policy{}, 0},
		{"actual side may reference values", `expect(value).toBe(2);`, Policy{}, 1},
		{"zero arguments", `expect(a).toMatchSnapshot();`, Policy{}, 1},
		{"two arguments", `expect(a).toEqual(1, 2);`, Policy{}, 0},
		{"unknown matcher", `expect(1).toNotExist(2);`, Policy{}, 0},
		{"bare function call", `toBe(2);`, Policy{}, 0},
		{"array literal without policy", `expect(a).toEqual([1, 2]);`, Policy{}, 0},
		{"array literal with policy", `expect(a).toEqual([1, "two", true]);`, Policy{AllowCompound: true}, 1},
		{"array with identifier element", `expect(a).toEqual([1, x]);`, Policy{AllowCompound: true}, 0},
		{"object literal with policy", `expect(a).toEqual({n: 1, "s": "v"});`, Policy{AllowCompound: true}, 1},
		{"nested compound", `expect(a).toEqual({list: [1, {deep: null}]});`, Policy{AllowCompound: true}, 1},
		{"object shorthand property", `expect(a).toEqual({b});`, Policy{AllowCompound: true}, 0},
		{"object computed key", `expect(a).toEqual({[k]: 1});`, Policy{AllowCompound: true}, 0},
		{"object spread", `expect(a).toEqual({...b});`, Policy{AllowCompound: true}, 0},
		{"object value references identifier", `expect(a).toEqual({n: x});`, Policy{AllowCompound: true}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			list := extractText(t, tc.text, tc.policy)
			if got := len(list.Matchers); got != tc.want {
				t.Errorf("extracted %d matchers, want %d\nsource: %s", got, tc.want, tc.text)
			}
		})
	}
}

func TestExtractRanges(t *testing.T) {
	text := `expect(1).toBe(2);`
	list := extractText(t, text, Policy{})
	if len(list.Matchers) != 1 {
		t.Fatalf("extracted %d matchers, want 1", len(list.Matchers))
	}
	m := list.Matchers[0]

	if m.Name != "toBe" || m.Kind != KindInline {
		t.Errorf("matcher = %q/%s, want toBe/inline", m.Name, m.Kind)
	}
	if m.ExprStart != 0 {
		t.Errorf("ExprStart = %d, want 0", m.ExprStart)
	}
	if got := text[m.CallStart:m.CallEnd]; got != "toBe(2)" {
		t.Errorf("call range = %q, want %q", got, "toBe(2)")
	}
	if !m.HasArg {
		t.Fatal("matcher has no argument range")
	}
	if got := text[m.ArgStart:m.ArgEnd]; got != "2" {
		t.Errorf("argument range = %q, want %q", got, "2")
	}
}

func TestExtractZeroArgumentCall(t *testing.T) {
	text := `expect(page).toMatchSnapshot();`
	list := extractText(t, text, Policy{})
	if len(list.Matchers) != 1 {
		t.Fatalf("extracted %d matchers, want 1", len(list.Matchers))
	}
	m := list.Matchers[0]
	if m.HasArg {
		t.Error("zero-argument call reported an argument range")
	}
	if m.Kind != KindArtifact {
		t.Errorf("kind = %s, want artifact", m.Kind)
	}
	if got := text[m.CallStart:m.CallEnd]; got != "toMatchSnapshot()" {
		t.Errorf("call range = %q, want %q", got, "toMatchSnapshot()")
	}
}

func TestExtractOrdering(t *testing.T) {
	text := strings.Join([]string{
		`expect(1).toBe(2);`,
		`expect(3).toEqual(4);`,
		`expect(page).toMatchSnapshot();`,
	}, "\n")
	list := extractText(t, text, Policy{})
	if len(list.Matchers) != 3 {
		t.Fatalf("extracted %d matchers, want 3", len(list.Matchers))
	}
	for i := 1; i < len(list.Matchers); i++ {
		if list.Matchers[i-1].CallStart >= list.Matchers[i].CallStart {
			t.Fatalf("matchers out of order at %d: %d >= %d",
				i, list.Matchers[i-1].CallStart, list.Matchers[i].CallStart)
		}
	}
}

func TestExtractParseError(t *testing.T) {
	f := source.NewFile("broken.js", []byte(`expect(1).toBe(;`))
	_, err := Extract(context.Background(), f, testRegistry(), Policy{})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Extract = %v, want *ParseError", err)
	}
	if parseErr.Path != "broken.js" {
		t.Errorf("ParseError.Path = %q", parseErr.Path)
	}
}

func TestListAt(t *testing.T) {
	text := `expect(1).toBe(2); expect(3).toBe(4);`
	list := extractText(t, text, Policy{})
	if len(list.Matchers) != 2 {
		t.Fatalf("extracted %d matchers, want 2", len(list.Matchers))
	}
	first, second := list.Matchers[0], list.Matchers[1]

	t.Run("exact call start", func(t *testing.T) {
		m, ok := list.At(second.CallStart)
		if !ok || m.CallStart != second.CallStart {
			t.Fatalf("At(%d) = %+v, %v", second.CallStart, m, ok)
		}
	})
	t.Run("containment fallback", func(t *testing.T) {
		// A recorded column pointing into the receiver chain still resolves
		// to the enclosing matcher call.
		m, ok := list.At(first.ExprStart + 2)
		if !ok || m.CallStart != first.CallStart {
			t.Fatalf("At(%d) = %+v, %v", first.ExprStart+2, m, ok)
		}
	})
	t.Run("receiver offset before call start", func(t *testing.T) {
		// Offset 7 is inside expect(1), before toBe's own start at 10; the
		// containing matcher starts after the offset and must still be found.
		m, ok := list.At(7)
		if !ok || m.CallStart != first.CallStart {
			t.Fatalf("At(7) = %+v, %v", m, ok)
		}
	})
	t.Run("offset outside any call", func(t *testing.T) {
		if m, ok := list.At(len(text) - 1); ok {
			t.Fatalf("At past last call = %+v, want miss", m)
		}
	})
}
