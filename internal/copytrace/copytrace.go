// Package copytrace infers which paths on each side of a merge are copies or
// renames of ancestor paths, so the planner can merge moved files against
// their real source instead of treating a rename as a delete plus an add.
// Rename edges come from the copy provenance each snapshot records; content
// lineages are reconstructed by walking those edges backward through the
// history graph, bounded by the earliest revision that belongs to only one
// side of the merge.
package copytrace

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ankitiscracked/stitch/internal/dag"
	"github.com/ankitiscracked/stitch/internal/manifest"
	"github.com/ankitiscracked/stitch/internal/tree"
)

// ErrAmbiguousAncestor means the trace could not be bounded: the two sides
// share no usable history below the merge. Callers fall back to "no copies
// detected" instead of failing the merge.
var ErrAmbiguousAncestor = errors.New("cannot bound copy trace")

// Result is everything one trace learned.
type Result struct {
	// Copies maps destination path to source path, both sides merged.
	Copies map[string]string
	// MoveWithDir maps an unaccounted new file to the destination it should
	// occupy because its directory was renamed on the opposite side.
	MoveWithDir map[string]string
	// DirMoves maps source directory prefix to destination prefix, both
	// slash-terminated.
	DirMoves map[string]string
	// Diverge maps an ancestor source to the destinations it was renamed to
	// on both sides (a rename race the user must untangle).
	Diverge map[string][]string
	// RenameDelete maps a source renamed on one side and deleted on the
	// other to the surviving destination(s).
	RenameDelete map[string][]string
}

func newResult() *Result {
	return &Result{
		Copies:       make(map[string]string),
		MoveWithDir:  make(map[string]string),
		DirMoves:     make(map[string]string),
		Diverge:      make(map[string][]string),
		RenameDelete: make(map[string][]string),
	}
}

// version identifies one point in a file's content lineage: the snapshot
// that introduced it, the name it had there, and its content id.
type version struct {
	intro string
	path  string
	node  string
	gen   int
}

// Tracer walks file lineages over one operation's history view. It owns a
// bounded lineage cache; construct one per operation and share it across the
// sides being traced.
type Tracer struct {
	hist      tree.History
	revs      *dag.Revs
	ctxs      map[string]*tree.Context
	manifests map[string]*manifest.Manifest
	lineages  *lru.Cache[string, []version]
	logger    *slog.Logger
}

// New creates a Tracer over hist. revs must be built on a graph that can
// resolve every id the traced contexts use, the working pseudo-id included.
func New(hist tree.History, revs *dag.Revs, cacheSize int, logger *slog.Logger) (*Tracer, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, []version](cacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		hist:      hist,
		revs:      revs,
		ctxs:      make(map[string]*tree.Context),
		manifests: make(map[string]*manifest.Manifest),
		lineages:  cache,
		logger:    logger,
	}, nil
}

// Trace computes the copy information for merging c1 and c2 with ancestor ca.
func (t *Tracer) Trace(c1, c2, ca *tree.Context) (*Result, error) {
	res := newResult()
	if c1 == nil || c2 == nil || ca == nil {
		return res, nil
	}
	if ca.ID() == c1.ID() || ca.ID() == c2.ID() {
		return res, nil
	}

	// Merging the working copy with its own first parent needs no graph
	// walk: the index already records exactly the copies made since then.
	if c2.IsWorking() && c2.PrimaryParent() == c1.ID() {
		for dst, src := range mustCopies(c2) {
			res.Copies[dst] = src
		}
		return res, nil
	}
	if c1.IsWorking() && c1.PrimaryParent() == c2.ID() {
		for dst, src := range mustCopies(c1) {
			res.Copies[dst] = src
		}
		return res, nil
	}

	for _, c := range []*tree.Context{c1, c2, ca} {
		t.ctxs[c.ID()] = c
		t.manifests[c.ID()] = c.Manifest()
	}

	limit, err := dag.FindLimit(t.revs, c1.ID(), c2.ID())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmbiguousAncestor, err)
	}
	caGen, err := t.revs.Generation(ca.ID())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAmbiguousAncestor, err)
	}

	m1, m2, ma := c1.Manifest(), c2.Manifest(), ca.Manifest()
	added1 := filesNotIn(m1, ma)
	added2 := filesNotIn(m2, ma)
	var u1, u2, bothnew []string
	for _, f := range added1 {
		if m2.Contains(f) {
			bothnew = append(bothnew, f)
		} else {
			u1 = append(u1, f)
		}
	}
	for _, f := range added2 {
		if !m1.Contains(f) {
			u2 = append(u2, f)
		}
	}

	fullcopy := make(map[string]string)
	diverge := make(map[string][]string)
	for _, f := range u1 {
		if err := t.checkCopies(f, c1.ID(), m1, c2.ID(), m2, ma, limit, caGen, diverge, res.Copies, fullcopy); err != nil {
			return nil, err
		}
	}
	for _, f := range u2 {
		if err := t.checkCopies(f, c2.ID(), m2, c1.ID(), m1, ma, limit, caGen, diverge, res.Copies, fullcopy); err != nil {
			return nil, err
		}
	}

	// Paths added on both sides are only copies if tracing them against
	// either side lands on the same source.
	dc1 := make(map[string]string)
	dc2 := make(map[string]string)
	for _, f := range bothnew {
		if err := t.checkCopies(f, c1.ID(), m1, c2.ID(), m2, ma, limit, caGen, diverge, dc1, fullcopy); err != nil {
			return nil, err
		}
		if err := t.checkCopies(f, c2.ID(), m2, c1.ID(), m1, ma, limit, caGen, diverge, dc2, fullcopy); err != nil {
			return nil, err
		}
	}
	for _, f := range bothnew {
		if src := dc1[f]; src != "" && src == dc2[f] {
			res.Copies[f] = src
		}
	}

	t.splitDivergence(diverge, m1, m2, res)
	t.findDirMoves(fullcopy, m1, m2, append(append([]string{}, u1...), u2...), res)
	return res, nil
}

// checkCopies walks f's lineage on one side looking for an old name that the
// other side still carries. tip1/m1 are the side f lives on; tip2/m2 the
// opposite side. Accepted copies land in copies; every old name seen lands in
// fullcopy (directory-rename inference wants near-misses too); sources left
// behind in the ancestor land in diverge.
func (t *Tracer) checkCopies(f, tip1 string, m1 *manifest.Manifest, tip2 string, m2 *manifest.Manifest, ma *manifest.Manifest, limit, caGen int, diverge map[string][]string, copies, fullcopy map[string]string) error {
	chain, err := t.lineage(tip1, f)
	if err != nil {
		return err
	}

	of := ""
	seen := map[string]bool{f: true}
	for i := 1; i < len(chain); i++ {
		oc := chain[i]
		of = oc.path
		if seen[of] {
			// check the limit late: grab the last rename before it
			if oc.gen < limit {
				break
			}
			continue
		}
		seen[of] = true

		fullcopy[f] = of
		if !m2.Contains(of) {
			continue // no match, keep looking
		}
		if m2.Node(of) == ma.Node(of) {
			break // no-op change on the other side: not a copy
		}
		otherChain, err := t.lineage(tip2, of)
		if err != nil {
			return err
		}
		if rel, ok := related(chain[i:], otherChain, caGen); ok && (rel.path == f || rel.path == of) {
			copies[f] = of
			of = ""
			break
		}
	}

	if of != "" && ma.Contains(of) {
		diverge[of] = append(diverge[of], f)
	}
	return nil
}

// related finds the most recent common version of two lineages. Each slice
// starts with the version itself, ancestors following in descending
// generation order. Versions below limitGen are no longer relevant.
func related(l1, l2 []version, limitGen int) (version, bool) {
	i, j := 0, 0
	for i < len(l1) && j < len(l2) {
		a, b := l1[i], l2[j]
		switch {
		case a.gen > b.gen:
			i++
		case b.gen > a.gen:
			j++
		case a == b:
			return a, true
		case a.gen < limitGen:
			return version{}, false
		default:
			// same generation, different versions: unrelated branches
			return version{}, false
		}
	}
	return version{}, false
}

// splitDivergence separates true divergent renames from rename+delete cases
// and drops sources that still exist on a side (then it is a copy, not a
// rename race).
func (t *Tracer) splitDivergence(diverge map[string][]string, m1, m2 *manifest.Manifest, res *Result) {
	for _, of := range sortedKeys(diverge) {
		fl := diverge[of]
		sort.Strings(fl)
		if len(fl) == 1 || m1.Contains(of) || m2.Contains(of) {
			if m1.Contains(of) || m2.Contains(of) {
				continue
			}
			var kept []string
			for _, f := range fl {
				if m1.Contains(f) || m2.Contains(f) {
					kept = append(kept, f)
				}
			}
			if len(kept) > 0 {
				res.RenameDelete[of] = kept
			}
			continue
		}
		res.Diverge[of] = fl
	}
}

// findDirMoves promotes consistent per-file copies to directory renames. A
// source directory qualifies only when it vanished entirely on at least one
// side and every traced file out of it landed in one destination directory.
// Unaccounted new files under a moved directory follow it.
func (t *Tracer) findDirMoves(fullcopy map[string]string, m1, m2 *manifest.Manifest, unmatched []string, res *Result) {
	if len(fullcopy) == 0 {
		return
	}
	d1 := dirSet(m1)
	d2 := dirSet(m2)

	invalid := make(map[string]bool)
	dirmove := make(map[string]string)
	for _, dst := range sortedKeys(fullcopy) {
		src := fullcopy[dst]
		dsrc, ddst := dirOf(src), dirOf(dst)
		switch {
		case dsrc == ddst || dsrc == "" || ddst == "":
			// not a move between directories
		case invalid[dsrc]:
		case d1[dsrc] && d1[ddst]:
			// source directory wasn't entirely moved locally
			invalid[dsrc] = true
		case d2[dsrc] && d2[ddst]:
			// source directory wasn't entirely moved remotely
			invalid[dsrc] = true
		case dirmove[dsrc] != "" && dirmove[dsrc] != ddst:
			// files from one directory moved to two different places
			invalid[dsrc] = true
		default:
			dirmove[dsrc] = ddst
		}
	}
	for d := range invalid {
		delete(dirmove, d)
	}
	if len(dirmove) == 0 {
		return
	}

	for src, dst := range dirmove {
		res.DirMoves[src+"/"] = dst + "/"
		t.logger.Debug("discovered dir move", "from", src, "to", dst)
	}

	// Longest prefix first so nested moved directories win over their
	// parents.
	prefixes := sortedKeys(res.DirMoves)
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	for _, f := range unmatched {
		if _, ok := fullcopy[f]; ok {
			continue
		}
		for _, d := range prefixes {
			if !strings.HasPrefix(f, d) {
				continue
			}
			df := res.DirMoves[d] + f[len(d):]
			if _, taken := res.Copies[df]; !taken && df != f {
				res.MoveWithDir[f] = df
				t.logger.Debug("pending file move", "from", f, "to", df)
			}
			break
		}
	}
}

// lineage returns the content lineage of path as seen from tip: the current
// version first, then each prior version, following recorded rename edges.
func (t *Tracer) lineage(tip, path string) ([]version, error) {
	key := tip + "\x00" + path
	if chain, ok := t.lineages.Get(key); ok {
		return chain, nil
	}

	v, err := t.versionAt(tip, path)
	if err != nil {
		return nil, err
	}
	chain := []version{v}
	for {
		prev, ok, err := t.prevVersion(chain[len(chain)-1])
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		chain = append(chain, prev)
	}
	t.lineages.Add(key, chain)
	return chain, nil
}

// versionAt resolves the version of path visible at snap: its content id and
// the snapshot that introduced that exact (path, content) pair.
func (t *Tracer) versionAt(snap, path string) (version, error) {
	m, err := t.manifestOf(snap)
	if err != nil {
		return version{}, err
	}
	n := m.Node(path)
	if n == "" {
		return version{}, fmt.Errorf("%s not present in %s", path, snap)
	}

	intro := snap
	for {
		moved := false
		parents, err := t.revs.Parents(intro)
		if err != nil {
			return version{}, err
		}
		for _, p := range parents {
			pm, err := t.manifestOf(p)
			if err != nil {
				return version{}, err
			}
			if pm.Node(path) == n {
				intro = p
				moved = true
				break
			}
		}
		if !moved {
			break
		}
	}
	gen, err := t.revs.Generation(intro)
	if err != nil {
		return version{}, err
	}
	return version{intro: intro, path: path, node: n, gen: gen}, nil
}

// prevVersion steps one version back: through the rename edge the
// introducing snapshot recorded, or to the changed content under the same
// name in a parent.
func (t *Tracer) prevVersion(v version) (version, bool, error) {
	src := t.copySourceOf(v.intro, v.path)
	parents, err := t.revs.Parents(v.intro)
	if err != nil {
		return version{}, false, err
	}
	for _, p := range parents {
		pm, err := t.manifestOf(p)
		if err != nil {
			return version{}, false, err
		}
		if src != "" && pm.Contains(src) {
			pv, err := t.versionAt(p, src)
			if err != nil {
				return version{}, false, err
			}
			return pv, true, nil
		}
		if pm.Contains(v.path) {
			pv, err := t.versionAt(p, v.path)
			if err != nil {
				return version{}, false, err
			}
			return pv, true, nil
		}
	}
	return version{}, false, nil
}

func (t *Tracer) manifestOf(id string) (*manifest.Manifest, error) {
	if m, ok := t.manifests[id]; ok {
		return m, nil
	}
	m, err := t.hist.ManifestForSnapshot(id)
	if err != nil {
		return nil, err
	}
	t.manifests[id] = m
	return m, nil
}

func (t *Tracer) copySourceOf(id, path string) string {
	if c, ok := t.ctxs[id]; ok && c.IsWorking() {
		return mustCopies(c)[path]
	}
	copies, err := t.hist.SnapshotCopies(id)
	if err != nil {
		return ""
	}
	return copies[path]
}

func mustCopies(c *tree.Context) map[string]string {
	copies, err := c.Copies()
	if err != nil {
		return nil
	}
	return copies
}

// filesNotIn returns the sorted paths present in m but absent from other.
func filesNotIn(m, other *manifest.Manifest) []string {
	var out []string
	for _, f := range m.Paths() {
		if !other.Contains(f) {
			out = append(out, f)
		}
	}
	return out
}

// dirSet collects every directory prefix occupied by a manifest's paths.
func dirSet(m *manifest.Manifest) map[string]bool {
	dirs := make(map[string]bool)
	for _, f := range m.Paths() {
		for d := dirOf(f); d != ""; d = dirOf(d) {
			if dirs[d] {
				break
			}
			dirs[d] = true
		}
	}
	return dirs
}

func dirOf(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
