package arc

import "fmt"

// IterOption configures one iteration pass.
type IterOption func(*Iter)

// IterWithMembers restricts iteration to the given members, each a *Member
// or a name string. Other members are skipped without opening their
// content.
func IterWithMembers(refs ...any) IterOption {
	return func(it *Iter) {
		names := make(map[string]bool)
		indices := make(map[int]bool)
		for _, ref := range refs {
			switch v := ref.(type) {
			case *Member:
				indices[v.ID.index] = true
			case string:
				names[v] = true
			}
		}
		it.include = func(m *Member) bool {
			return names[m.Name] || indices[m.ID.index]
		}
	}
}

// IterWithSelect restricts iteration to members for which fn returns true.
func IterWithSelect(fn func(*Member) bool) IterOption {
	return func(it *Iter) {
		it.include = fn
	}
}

// IterWithPassword overrides the archive-level password for this pass.
func IterWithPassword(password string) IterOption {
	return func(it *Iter) {
		it.password = password
	}
}

// Iter walks an archive's members in registration order, pairing each file
// member with a readable stream.
//
//	it, err := r.Iterate()
//	if err != nil { ... }
//	defer it.Close()
//	for it.Next() {
//	    m, f := it.Member(), it.File()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
//
// Advancing to the next member force-closes the previous member's stream,
// so an unconsumed stream never leaks; consume it before calling Next
// again.
type Iter struct {
	r        *Reader
	pos      int
	cur      *Member
	file     *MemberFile
	err      error
	done     bool
	include  func(*Member) bool
	password string
}

// Iterate starts a pass over the archive's members.
//
// On a streaming-only reader the pass is single-shot: once an iteration
// has been started, any further Iterate call fails with ErrIllegalState.
// Random-access readers may iterate any number of times.
func (r *Reader) Iterate(opts ...IterOption) (*Iter, error) {
	if r.closed {
		return nil, r.closedErr()
	}
	if r.streamingOnly && r.iterStarted {
		return nil, archiveErr(r.path, "", fmt.Errorf("%w: streaming-only archive can only be iterated once", ErrIllegalState))
	}
	r.iterStarted = true

	it := &Iter{r: r, password: r.password}
	for _, opt := range opts {
		opt(it)
	}
	r.activeIter = it
	return it, nil
}

// Next advances to the next member, closing the previous member's stream.
// It returns false when the pass is exhausted or an error occurred; check
// Err afterwards.
func (it *Iter) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	if it.r.closed {
		it.err = it.r.closedErr()
		return false
	}
	it.closeCurrent()

	reg := it.r.reg
	for {
		for it.pos >= len(reg.members) {
			if reg.complete {
				it.finish()
				return false
			}
			if _, err := reg.registerNext(); err != nil {
				it.err = it.r.wrap("", err)
				it.finish()
				return false
			}
		}

		m := reg.members[it.pos]
		it.pos++
		if it.include != nil && !it.include(m) {
			continue
		}
		it.cur = m
		if m.IsFile() {
			it.file = it.r.newMemberFile(m, it.password)
		}
		return true
	}
}

// Member returns the member at the current position.
func (it *Iter) Member() *Member { return it.cur }

// File returns the stream for the current member's content, or nil for
// members without content (directories, links). The stream is valid until
// the next call to Next or Close.
func (it *Iter) File() *MemberFile { return it.file }

// Err returns the first error encountered while advancing.
func (it *Iter) Err() error { return it.err }

// Close ends the pass early, closing the current member's stream. On a
// streaming-only reader the pass counts as consumed.
func (it *Iter) Close() error {
	it.closeCurrent()
	it.finish()
	return nil
}

func (it *Iter) closeCurrent() {
	if it.file != nil {
		_ = it.file.Close()
		it.file = nil
	}
}

func (it *Iter) finish() {
	it.done = true
	it.cur = nil
	if it.r.activeIter == it {
		it.r.activeIter = nil
	}
}
