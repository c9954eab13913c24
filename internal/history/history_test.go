package history

import (
	"path/filepath"
	"testing"

	"github.com/idnahacks/GoodHound/internal/results"
)

func testResults() []results.Result {
	return []results.Result{
		{UID: "aaaa", StartNode: "G1", NumMembers: 2, Percentage: 50.0, Hops: 2, Cost: 1, RiskScore: 42.5, FullPath: "G1 - MemberOf -> G2 - AdminTo -> C", Query: "match p=() return p"},
		{UID: "bbbb", StartNode: "G2", NumMembers: 1, Percentage: 25.0, Hops: 1, Cost: 3, RiskScore: 10.0, FullPath: "G2 - HasSession -> C", Query: "match p=() return p"},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "goodhound.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenAppendsFilenameToDirectory(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if filepath.Base(s.Path()) != DefaultFilename {
		t.Fatalf("path: got %s, want %s under the directory", s.Path(), DefaultFilename)
	}
}

func TestRecordNewPaths(t *testing.T) {
	s := openTestStore(t)
	newPaths, seenBefore, err := s.Record(testResults(), 1000)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if newPaths != 2 || seenBefore != 0 {
		t.Fatalf("got new=%d seen=%d, want 2/0", newPaths, seenBefore)
	}
	first, last, ok, err := s.Lookup("aaaa")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if first != 1000 || last != 1000 {
		t.Fatalf("got first=%d last=%d, want 1000/1000", first, last)
	}
}

func TestRecordReplayIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	rs := testResults()
	if _, _, err := s.Record(rs, 1000); err != nil {
		t.Fatalf("record: %v", err)
	}
	newPaths, seenBefore, err := s.Record(rs, 1000)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if newPaths != 0 || seenBefore != len(rs) {
		t.Fatalf("replay: got new=%d seen=%d, want 0/%d", newPaths, seenBefore, len(rs))
	}
	first, last, _, _ := s.Lookup("aaaa")
	if first != 1000 || last != 1000 {
		t.Fatalf("replay changed timestamps: first=%d last=%d", first, last)
	}
}

func TestRecordScanDateAdvances(t *testing.T) {
	s := openTestStore(t)
	rs := testResults()
	if _, _, err := s.Record(rs, 1000); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, _, err := s.Record(rs, 2000); err != nil {
		t.Fatalf("record: %v", err)
	}
	first, last, _, _ := s.Lookup("aaaa")
	if first != 1000 || last != 2000 {
		t.Fatalf("got first=%d last=%d, want 1000/2000", first, last)
	}
}

func TestRecordOutOfOrderLoads(t *testing.T) {
	// Loading the newer dataset first then the older one must converge to
	// the same first_seen/last_seen state as loading them in order.
	s := openTestStore(t)
	rs := testResults()
	if _, _, err := s.Record(rs, 2000); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, _, err := s.Record(rs, 1000); err != nil {
		t.Fatalf("record: %v", err)
	}
	first, last, _, _ := s.Lookup("bbbb")
	if first != 1000 || last != 2000 {
		t.Fatalf("got first=%d last=%d, want 1000/2000", first, last)
	}
}
