package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ankitiscracked/stitch/internal/config"
)

func initWs(t *testing.T) *Workspace {
	t.Helper()
	ws, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return ws
}

func writeFile(t *testing.T, ws *Workspace, path, content string) {
	t.Helper()
	abs := filepath.Join(ws.Root(), filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, ws *Workspace, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(ws.Root(), filepath.FromSlash(path)))
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func snap(t *testing.T, ws *Workspace, msg string) string {
	t.Helper()
	meta, err := ws.Snapshot(msg)
	if err != nil {
		t.Fatalf("snapshot %q: %v", msg, err)
	}
	return meta.ID
}

func TestInitSnapshotStatus(t *testing.T) {
	ws := initWs(t)

	st, err := ws.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.HasChanges() || st.Parent != "" {
		t.Fatalf("fresh workspace should be empty: %+v", st)
	}

	writeFile(t, ws, "a.txt", "hello\n")
	st, err = ws.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(st.Untracked) != 1 || st.Untracked[0] != "a.txt" {
		t.Fatalf("expected a.txt untracked: %+v", st)
	}
	if st.HasChanges() {
		t.Fatalf("untracked files are not changes: %+v", st)
	}

	meta, err := ws.Snapshot("first")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(meta.ID) != 40 || meta.Files != 1 {
		t.Fatalf("snapshot meta wrong: %+v", meta)
	}
	if !ws.Store().SnapshotExists(meta.ID) {
		t.Fatalf("snapshot not in the store")
	}
	if ws.Index().P1() != meta.ID {
		t.Fatalf("index parent not updated: %q", ws.Index().P1())
	}

	st, err = ws.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.HasChanges() || len(st.Untracked) != 0 {
		t.Fatalf("clean after snapshot, got %+v", st)
	}
}

func TestUpdateLinear(t *testing.T) {
	ws := initWs(t)

	writeFile(t, ws, "a.txt", "one\n")
	s1 := snap(t, ws, "first")

	writeFile(t, ws, "a.txt", "two\n")
	writeFile(t, ws, "b.txt", "bee\n")
	s2 := snap(t, ws, "second")

	res, err := ws.Update(s1, UpdateOpts{})
	if err != nil {
		t.Fatalf("Update back: %v", err)
	}
	if res.Target != s1 {
		t.Fatalf("wrong target: %q", res.Target)
	}
	if res.Stats.Updated != 1 || res.Stats.Removed != 1 || res.Stats.Unresolved != 0 {
		t.Fatalf("stats wrong: %+v", res.Stats)
	}
	if got := readFile(t, ws, "a.txt"); got != "one\n" {
		t.Fatalf("a.txt not reverted: %q", got)
	}
	if _, err := os.Stat(filepath.Join(ws.Root(), "b.txt")); !os.IsNotExist(err) {
		t.Fatalf("b.txt should be gone after updating back")
	}
	if ws.Index().P1() != s1 || ws.Index().InMerge() {
		t.Fatalf("index parents wrong: %v", ws.Index().Parents())
	}
	st, err := ws.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.HasChanges() {
		t.Fatalf("working copy should be clean at s1: %+v", st)
	}

	if _, err := ws.Update(s2, UpdateOpts{}); err != nil {
		t.Fatalf("Update forward: %v", err)
	}
	if got := readFile(t, ws, "a.txt"); got != "two\n" {
		t.Fatalf("a.txt not restored: %q", got)
	}
	if got := readFile(t, ws, "b.txt"); got != "bee\n" {
		t.Fatalf("b.txt not restored: %q", got)
	}
}

// An update carries uncommitted local changes along, merging them with the
// target's version of the file.
func TestUpdateCarriesLocalChanges(t *testing.T) {
	ws := initWs(t)

	writeFile(t, ws, "a.txt", "1\n2\n3\n")
	s1 := snap(t, ws, "first")
	writeFile(t, ws, "a.txt", "1\n2\n3\n4\n")
	s2 := snap(t, ws, "append tail")

	if _, err := ws.Update(s1, UpdateOpts{}); err != nil {
		t.Fatalf("Update back: %v", err)
	}
	writeFile(t, ws, "a.txt", "0\n1\n2\n3\n")

	res, err := ws.Update(s2, UpdateOpts{})
	if err != nil {
		t.Fatalf("Update forward: %v", err)
	}
	if res.Stats.Unresolved != 0 {
		t.Fatalf("non-overlapping edits must merge cleanly: %+v", res.Stats)
	}
	if got := readFile(t, ws, "a.txt"); got != "0\n1\n2\n3\n4\n" {
		t.Fatalf("merged content wrong: %q", got)
	}

	st, err := ws.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(st.Modified) != 1 || st.Modified[0] != "a.txt" {
		t.Fatalf("the carried change should show as modified: %+v", st)
	}
}

// divergent builds two snapshots editing the same file from a common base
// and leaves the working copy at the second one.
func divergent(t *testing.T, ws *Workspace) (base, local, other string) {
	t.Helper()
	writeFile(t, ws, "a.txt", "base\n")
	base = snap(t, ws, "base")

	writeFile(t, ws, "a.txt", "local\n")
	other = snap(t, ws, "theirs")

	if _, err := ws.Update(base, UpdateOpts{}); err != nil {
		t.Fatalf("Update to base: %v", err)
	}
	writeFile(t, ws, "a.txt", "remote\n")
	local = snap(t, ws, "ours")
	return base, local, other
}

func TestMergeConflictAndSnapshot(t *testing.T) {
	ws := initWs(t)
	_, local, other := divergent(t, ws)

	res, err := ws.Merge(other, UpdateOpts{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Stats.Unresolved != 1 {
		t.Fatalf("expected one conflict: %+v", res.Stats)
	}
	if !strings.Contains(readFile(t, ws, "a.txt"), "<<<<<<<") {
		t.Fatalf("expected conflict markers on disk")
	}
	if !ws.Index().InMerge() || ws.Index().P1() != local || ws.Index().P2() != other {
		t.Fatalf("index parents wrong: %v", ws.Index().Parents())
	}
	pending, err := config.ReadPendingParentsAt(ws.Root())
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending parents not recorded: %v, %v", pending, err)
	}
	up, err := ws.UnresolvedPaths()
	if err != nil || len(up) != 1 || up[0] != "a.txt" {
		t.Fatalf("unresolved paths wrong: %v, %v", up, err)
	}

	// nothing moves forward while the conflict is open
	if _, err := ws.Snapshot("too early"); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("snapshot should refuse: %v", err)
	}
	if _, err := ws.Update(other, UpdateOpts{}); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("update should refuse: %v", err)
	}

	writeFile(t, ws, "a.txt", "merged\n")
	if err := ws.MarkResolved(nil, true); err != nil {
		t.Fatalf("MarkResolved: %v", err)
	}
	up, err = ws.UnresolvedPaths()
	if err != nil || len(up) != 0 {
		t.Fatalf("still unresolved: %v, %v", up, err)
	}

	meta, err := ws.Snapshot("merge")
	if err != nil {
		t.Fatalf("merge snapshot: %v", err)
	}
	if len(meta.ParentSnapshotIDs) != 2 {
		t.Fatalf("merge snapshot should have two parents: %v", meta.ParentSnapshotIDs)
	}
	got := map[string]bool{}
	for _, p := range meta.ParentSnapshotIDs {
		got[p] = true
	}
	if !got[local] || !got[other] {
		t.Fatalf("wrong merge parents: %v", meta.ParentSnapshotIDs)
	}
	if ws.Index().InMerge() || ws.Index().P1() != meta.ID {
		t.Fatalf("index not settled after the merge snapshot: %v", ws.Index().Parents())
	}
	if pending, _ := config.ReadPendingParentsAt(ws.Root()); len(pending) != 0 {
		t.Fatalf("pending parents should be cleared: %v", pending)
	}
}

func TestResolveReruns(t *testing.T) {
	ws := initWs(t)
	_, _, other := divergent(t, ws)

	if _, err := ws.Merge(other, UpdateOpts{}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	res, err := ws.Resolve(nil, true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Unresolved != 1 || res.Resolved != 0 {
		t.Fatalf("overlapping edits should still conflict: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(ws.Root(), "a.txt.orig")); err != nil {
		t.Fatalf("resolve should back up the working file: %v", err)
	}

	if err := ws.MarkResolved([]string{"a.txt"}, false); err != nil {
		t.Fatalf("MarkResolved: %v", err)
	}
	if err := ws.MarkUnresolved([]string{"a.txt"}); err != nil {
		t.Fatalf("MarkUnresolved: %v", err)
	}
	up, err := ws.UnresolvedPaths()
	if err != nil || len(up) != 1 {
		t.Fatalf("reopened conflict missing: %v, %v", up, err)
	}
}

func TestAbortMergeRestores(t *testing.T) {
	ws := initWs(t)
	_, local, other := divergent(t, ws)

	if _, err := ws.Merge(other, UpdateOpts{}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := ws.AbortMerge(); err != nil {
		t.Fatalf("AbortMerge: %v", err)
	}

	if got := readFile(t, ws, "a.txt"); got != "remote\n" {
		t.Fatalf("abort should restore the pre-merge content: %q", got)
	}
	if ws.Index().InMerge() || ws.Index().P1() != local {
		t.Fatalf("index parents wrong after abort: %v", ws.Index().Parents())
	}
	if pending, _ := config.ReadPendingParentsAt(ws.Root()); len(pending) != 0 {
		t.Fatalf("pending parents should be cleared: %v", pending)
	}
	up, err := ws.UnresolvedPaths()
	if err != nil || len(up) != 0 {
		t.Fatalf("conflict state should be gone: %v, %v", up, err)
	}
}

func TestMergeRefusesDirtyWorkingCopy(t *testing.T) {
	ws := initWs(t)
	_, _, other := divergent(t, ws)

	writeFile(t, ws, "a.txt", "dirty\n")
	if _, err := ws.Merge(other, UpdateOpts{}); err == nil {
		t.Fatalf("merge with uncommitted changes should refuse")
	}
}

func TestMergeGuards(t *testing.T) {
	ws := initWs(t)
	base, local, _ := divergent(t, ws)

	if _, err := ws.Merge(local, UpdateOpts{}); err == nil {
		t.Fatalf("merging with the working parent should refuse")
	}
	if _, err := ws.Merge(base, UpdateOpts{}); err == nil {
		t.Fatalf("merging with an ancestor should refuse")
	}
}

func TestLockContention(t *testing.T) {
	ws := initWs(t)

	l, err := ws.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := ws.Lock(); !errors.Is(err, ErrLocked) {
		t.Fatalf("second lock should fail with ErrLocked: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	l, err = ws.Lock()
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	l.Release()
}

func TestInterruptedOperationMarker(t *testing.T) {
	ws := initWs(t)
	writeFile(t, ws, "a.txt", "one\n")
	s1 := snap(t, ws, "first")
	writeFile(t, ws, "a.txt", "two\n")
	snap(t, ws, "second")

	if err := ws.writeMarker("update", s1); err != nil {
		t.Fatalf("writeMarker: %v", err)
	}
	if _, err := ws.Update(s1, UpdateOpts{}); err == nil || !strings.Contains(err.Error(), "interrupted") {
		t.Fatalf("expected interrupted-operation refusal, got %v", err)
	}

	if err := ws.AbortMerge(); err != nil {
		t.Fatalf("AbortMerge: %v", err)
	}
	if _, err := ws.Update(s1, UpdateOpts{}); err != nil {
		t.Fatalf("update after abort: %v", err)
	}
	if got := readFile(t, ws, "a.txt"); got != "one\n" {
		t.Fatalf("a.txt not reverted: %q", got)
	}
}

func TestLog(t *testing.T) {
	ws := initWs(t)
	writeFile(t, ws, "a.txt", "one\n")
	snap(t, ws, "first")
	writeFile(t, ws, "a.txt", "two\n")
	snap(t, ws, "second")

	metas, err := ws.Log(0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(metas))
	}
	metas, err = ws.Log(1)
	if err != nil || len(metas) != 1 {
		t.Fatalf("limit not applied: %d, %v", len(metas), err)
	}
}
