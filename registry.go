package arc

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/substrail/arc/internal/pathutil"
)

// maxLinkDepth bounds link-chain resolution.
const maxLinkDepth = 32

var archiveIDs atomic.Uint64

// registry owns the ordered, append-only collection of members discovered
// in one archive. Registration is the only mutation and happens on a single
// path, so handed-out members are safe for concurrent read-only use.
type registry struct {
	archiveID uint64
	archive   string

	members []*Member

	// byName keeps every member per filename in registration order; the
	// most recent one wins lookups.
	byName map[string][]*Member

	// byNormPath maps normalized paths to the latest member, used for
	// symlink target resolution.
	byNormPath map[string]*Member

	complete      bool
	listSupported bool

	next func() (*RawEntry, error)
}

func newRegistry(archive string, listSupported bool, next func() (*RawEntry, error)) *registry {
	return &registry{
		archiveID:     archiveIDs.Add(1),
		archive:       archive,
		byName:        make(map[string][]*Member),
		byNormPath:    make(map[string]*Member),
		listSupported: listSupported,
		next:          next,
	}
}

// register converts a raw entry into a Member, assigns the next sequential
// identity and indexes it. Members are never mutated or removed afterwards.
func (g *registry) register(raw *RawEntry) *Member {
	name := pathutil.Normalize(raw.Name)
	m := &Member{
		ID:             MemberID{archive: g.archiveID, index: len(g.members)},
		Name:           name,
		Size:           raw.Size,
		CompressedSize: raw.CompressedSize,
		Kind:           raw.Kind,
		ModTime:        raw.ModTime,
		AccessTime:     raw.AccessTime,
		ChangeTime:     raw.ChangeTime,
		Mode:           raw.Mode,
		UID:            raw.UID,
		GID:            raw.GID,
		Uname:          raw.Uname,
		Gname:          raw.Gname,
		LinkTarget:     raw.LinkTarget,
		Encrypted:      raw.Encrypted,
		CRC32:          raw.CRC32,
		HasCRC32:       raw.HasCRC32,
		Method:         raw.Method,
		Comment:        raw.Comment,
		Extra:          raw.Extra,
		raw:            raw,
	}
	g.members = append(g.members, m)
	g.byName[m.Name] = append(g.byName[m.Name], m)
	g.byNormPath[m.Name] = m
	return m
}

// registerNext draws one raw entry from the backend. It reports false once
// the backend is exhausted.
func (g *registry) registerNext() (bool, error) {
	if g.complete {
		return false, nil
	}
	raw, err := g.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			g.complete = true
			return false, nil
		}
		return false, err
	}
	g.register(raw)
	return true, nil
}

// snapshotIfComplete returns the full member list if it is already, or can
// trivially be made, complete. Backends without upfront listing support
// return nil until their single pass has registered everything.
func (g *registry) snapshotIfComplete() ([]*Member, error) {
	if g.complete {
		return g.snapshot(), nil
	}
	if !g.listSupported {
		return nil, nil
	}
	return g.forceComplete()
}

// forceComplete drains the raw-entry iterator to exhaustion. Idempotent:
// once complete it returns the cached list.
func (g *registry) forceComplete() ([]*Member, error) {
	for !g.complete {
		if _, err := g.registerNext(); err != nil {
			return nil, err
		}
	}
	return g.snapshot(), nil
}

func (g *registry) snapshot() []*Member {
	out := make([]*Member, len(g.members))
	copy(out, g.members)
	return out
}

// resolve maps a member reference to a registered Member. A *Member is
// checked for ownership and returned directly; a string is looked up by
// name, the most recently registered member winning. Lookup by name forces
// registration to complete first.
func (g *registry) resolve(ref any) (*Member, error) {
	switch v := ref.(type) {
	case *Member:
		if v == nil {
			return nil, fmt.Errorf("%w: nil member", ErrMemberNotFound)
		}
		if v.ID.archive != g.archiveID {
			return nil, fmt.Errorf("%w: member %q belongs to a different archive", ErrMemberNotFound, v.Name)
		}
		return v, nil
	case string:
		if _, err := g.forceComplete(); err != nil {
			return nil, err
		}
		ms := g.byName[pathutil.Normalize(v)]
		if len(ms) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrMemberNotFound, v)
		}
		return ms[len(ms)-1], nil
	default:
		return nil, fmt.Errorf("%w: unsupported reference type %T", ErrMemberNotFound, ref)
	}
}

// resolveLink follows a member's link target chain to the final non-link
// member. It returns nil for broken chains, cycles, and chains longer than
// maxLinkDepth. Non-link members resolve to themselves.
func (g *registry) resolveLink(m *Member) *Member {
	visited := make(map[int]bool)
	for depth := 0; depth <= maxLinkDepth; depth++ {
		if !m.IsLink() || m.LinkTarget == "" {
			return m
		}
		if visited[m.ID.index] {
			return nil // cycle
		}
		visited[m.ID.index] = true

		var target *Member
		switch m.Kind {
		case KindHardlink:
			target = g.hardlinkTarget(m)
		case KindSymlink:
			target = g.byNormPath[pathutil.Resolve(m.Name, m.LinkTarget)]
		}
		if target == nil {
			return nil // broken link
		}
		m = target
	}
	return nil // chain too long
}

// hardlinkTarget finds the member a hardlink refers to: the most recently
// registered member with the target name that precedes the link itself in
// archive order.
func (g *registry) hardlinkTarget(m *Member) *Member {
	candidates := g.byName[pathutil.Normalize(m.LinkTarget)]
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].ID.index < m.ID.index {
			return candidates[i]
		}
	}
	return nil
}
