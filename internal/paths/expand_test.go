package paths

import (
	"context"
	"sort"
	"sync"
	"testing"
)

// fakeSource is an in-memory group graph. It counts fetches so tests can
// assert memoization behavior.
type fakeSource struct {
	mu      sync.Mutex
	users   map[string][]string
	groups  map[string][]string
	fetches map[string]int
}

func newFakeSource(users, groups map[string][]string) *fakeSource {
	return &fakeSource{users: users, groups: groups, fetches: map[string]int{}}
}

func (f *fakeSource) DirectUsers(_ context.Context, group string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[group]++
	return f.users[group], nil
}

func (f *fakeSource) DirectSubgroups(_ context.Context, group string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups[group], nil
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func sameMembers(t *testing.T, got, want []string) {
	t.Helper()
	g, w := sorted(got), sorted(want)
	if len(g) != len(w) {
		t.Fatalf("members: got %v want %v", got, want)
	}
	for i := range w {
		if g[i] != w[i] {
			t.Fatalf("members: got %v want %v", got, want)
		}
	}
}

func TestExpandTransitive(t *testing.T) {
	// G2 nested in G1 nested in G0.
	src := newFakeSource(
		map[string][]string{"G0": {"u0"}, "G1": {"u1"}, "G2": {"u2"}},
		map[string][]string{"G0": {"G1"}, "G1": {"G2"}},
	)
	got, err := ExpandMembers(context.Background(), src, []string{"G0", "G1"}, ExpandOptions{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	sameMembers(t, got["G0"], []string{"u0", "u1", "u2"})
	sameMembers(t, got["G1"], []string{"u1", "u2"})
}

func TestExpandCycleTerminates(t *testing.T) {
	// G1 and G2 are members of each other.
	src := newFakeSource(
		map[string][]string{"G1": {"U1"}, "G2": {"U2"}},
		map[string][]string{"G1": {"G2"}, "G2": {"G1"}},
	)
	got, err := ExpandMembers(context.Background(), src, []string{"G1", "G2"}, ExpandOptions{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	sameMembers(t, got["G1"], []string{"U1", "U2"})
	sameMembers(t, got["G2"], []string{"U1", "U2"})
}

func TestExpandSelfCycleTerminates(t *testing.T) {
	src := newFakeSource(
		map[string][]string{"G1": {"U1"}},
		map[string][]string{"G1": {"G1"}},
	)
	got, err := ExpandMembers(context.Background(), src, []string{"G1"}, ExpandOptions{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	sameMembers(t, got["G1"], []string{"U1"})
}

func TestExpandMemoizedRootSpliced(t *testing.T) {
	// Roots are expanded sequentially with one worker; the second root must
	// splice in the first root's cached members instead of re-walking it.
	src := newFakeSource(
		map[string][]string{"A": {"ua"}, "B": {"ub"}, "C": {"uc"}},
		map[string][]string{"A": {"B"}, "B": {"C"}},
	)
	got, err := ExpandMembers(context.Background(), src, []string{"B", "A"}, ExpandOptions{Workers: 1})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	sameMembers(t, got["A"], []string{"ua", "ub", "uc"})
	sameMembers(t, got["B"], []string{"ub", "uc"})
	if src.fetches["C"] != 1 {
		t.Fatalf("C fetched %d times, want 1 (cached B should have been spliced)", src.fetches["C"])
	}
}

func TestExpandDiamondNoReprocess(t *testing.T) {
	// D is reachable from the root through two parents; it must be expanded
	// once within the root's BFS.
	src := newFakeSource(
		map[string][]string{"R": {}, "L": {"ul"}, "M": {"um"}, "D": {"ud"}},
		map[string][]string{"R": {"L", "M"}, "L": {"D"}, "M": {"D"}},
	)
	got, err := ExpandMembers(context.Background(), src, []string{"R"}, ExpandOptions{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	sameMembers(t, got["R"], []string{"ul", "um", "ud"})
	if src.fetches["D"] != 1 {
		t.Fatalf("D fetched %d times, want 1", src.fetches["D"])
	}
}

func TestExpandConcurrentRoots(t *testing.T) {
	users := map[string][]string{}
	groups := map[string][]string{}
	roots := make([]string, 0, 20)
	for _, r := range []string{"A", "B", "C", "D", "E"} {
		users[r] = []string{"u" + r}
		roots = append(roots, r)
	}
	// shared subtree
	groups["A"] = []string{"S"}
	groups["B"] = []string{"S"}
	users["S"] = []string{"us"}

	src := newFakeSource(users, groups)
	var done int
	var mu sync.Mutex
	got, err := ExpandMembers(context.Background(), src, roots, ExpandOptions{
		Workers: 4,
		Progress: func(string) {
			mu.Lock()
			done++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if done != len(roots) {
		t.Fatalf("progress called %d times, want %d", done, len(roots))
	}
	sameMembers(t, got["A"], []string{"uA", "us"})
	sameMembers(t, got["B"], []string{"uB", "us"})
	sameMembers(t, got["C"], []string{"uC"})
}

func TestTotalUniqueUsers(t *testing.T) {
	membership := map[string][]string{
		"G1": {"u1", "u2"},
		"G2": {"u2", "u3"},
	}
	userPaths := []Path{{StartNode: "u3"}, {StartNode: "u4"}}
	if got := TotalUniqueUsers(membership, userPaths); got != 4 {
		t.Fatalf("got %d want 4", got)
	}
}
