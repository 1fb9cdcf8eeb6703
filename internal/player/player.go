// Package player owns playback position and queue navigation as a
// single-writer state machine: every read-modify-write happens under one
// mutex, and subscriber callbacks are dispatched from a snapshot taken
// under that lock but invoked outside it, so a callback that re-enters
// the player cannot deadlock.
package player

import (
	"sync"
	"sync/atomic"

	"github.com/auralis/auralis/internal/apperrors"
	"github.com/auralis/auralis/internal/audio"
)

type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatOne RepeatMode = "one"
	RepeatAll RepeatMode = "all"
)

// QueueItem is one track entry in the playback queue.
type QueueItem struct {
	TrackID  string
	FilePath string
}

// Prebuffer holds a gapless-handoff candidate: the next track's decoded
// head, ready to swap in without a decode stall at the boundary.
type Prebuffer struct {
	TrackID  string
	FilePath string
	Audio    audio.Buffer
	SampleRate int
}

// Snapshot is an immutable copy of player state handed to subscribers.
type Snapshot struct {
	CurrentTrackID string
	PositionSamples int64
	IsPlaying      bool
	Volume         float64
	Shuffle        bool
	RepeatMode     RepeatMode
	Queue          []QueueItem
	CurrentIndex   int
}

// Callback receives a Snapshot after any state-changing operation.
type Callback func(Snapshot)

// Player is the single-writer playback state machine.
type Player struct {
	mu sync.Mutex

	currentTrackID  string
	positionSamples int64
	isPlaying       bool
	volume          float64
	shuffle         bool
	repeatMode      RepeatMode
	queue           []QueueItem
	currentIndex    int
	prebuffer       *Prebuffer
	shufflePerm     []int
	shufflePos      int

	autoAdvancing atomic.Bool

	subscribers []Callback
}

// New constructs an idle player with default volume and repeat-off.
func New() *Player {
	return &Player{
		volume:       1.0,
		repeatMode:   RepeatOff,
		currentIndex: -1,
	}
}

// Subscribe registers a callback invoked after every state-changing
// operation. Safe to call concurrently and from within a callback: the
// append happens under the lock, and dispatch does not hold it.
func (p *Player) Subscribe(cb Callback) {
	p.mu.Lock()
	p.subscribers = append(p.subscribers, cb)
	p.mu.Unlock()
}

// snapshotLocked builds a Snapshot; caller must hold p.mu.
func (p *Player) snapshotLocked() Snapshot {
	q := make([]QueueItem, len(p.queue))
	copy(q, p.queue)
	return Snapshot{
		CurrentTrackID:  p.currentTrackID,
		PositionSamples: p.positionSamples,
		IsPlaying:       p.isPlaying,
		Volume:          p.volume,
		Shuffle:         p.shuffle,
		RepeatMode:      p.repeatMode,
		Queue:           q,
		CurrentIndex:    p.currentIndex,
	}
}

// notify snapshots subscribers and state under the lock, then invokes
// every callback after releasing it.
func (p *Player) notify() {
	p.mu.Lock()
	snap := p.snapshotLocked()
	subs := make([]Callback, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, cb := range subs {
		cb(snap)
	}
}

// Snapshot returns the current state.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// SeekSamples sets the playback position and invalidates any gapless
// prebuffer, since the pipeline tail state for the new position is not
// the one the prebuffer was computed against.
func (p *Player) SeekSamples(pos int64) {
	p.mu.Lock()
	p.positionSamples = pos
	p.prebuffer = nil
	p.mu.Unlock()
	p.notify()
}

// AdvancePosition advances position by n samples (called from the
// playback tick).
func (p *Player) AdvancePosition(n int64) {
	p.mu.Lock()
	p.positionSamples += n
	p.mu.Unlock()
	p.notify()
}

// SetPlaying toggles play/pause.
func (p *Player) SetPlaying(playing bool) {
	p.mu.Lock()
	p.isPlaying = playing
	p.mu.Unlock()
	p.notify()
}

// SetVolume sets playback volume in [0,1].
func (p *Player) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
	p.notify()
}

// Enqueue appends an item to the queue. Invalidates the prebuffer only
// if the appended item lands at current_index+1.
func (p *Player) Enqueue(item QueueItem) {
	p.mu.Lock()
	p.queue = append(p.queue, item)
	if len(p.queue)-1 == p.currentIndex+1 {
		p.prebuffer = nil
	}
	p.mu.Unlock()
	p.notify()
}

// Remove deletes the queue entry at idx. Invalidates the prebuffer if
// the removal changes what sits at current_index+1.
func (p *Player) Remove(idx int) error {
	p.mu.Lock()
	if idx < 0 || idx >= len(p.queue) {
		p.mu.Unlock()
		return apperrors.Newf("queue index %d out of range", idx).
			Category(apperrors.CategoryInvalid).
			Build()
	}
	p.queue = append(p.queue[:idx], p.queue[idx+1:]...)
	if idx <= p.currentIndex+1 {
		p.prebuffer = nil
	}
	if idx < p.currentIndex {
		p.currentIndex--
	}
	p.mu.Unlock()
	p.notify()
	return nil
}

// Reorder moves the item at from to position to.
func (p *Player) Reorder(from, to int) error {
	p.mu.Lock()
	if from < 0 || from >= len(p.queue) || to < 0 || to >= len(p.queue) {
		p.mu.Unlock()
		return apperrors.Newf("reorder indices out of range").
			Category(apperrors.CategoryInvalid).
			Build()
	}
	item := p.queue[from]
	p.queue = append(p.queue[:from], p.queue[from+1:]...)
	p.queue = append(p.queue[:to], append([]QueueItem{item}, p.queue[to:]...)...)
	p.prebuffer = nil
	p.mu.Unlock()
	p.notify()
	return nil
}

// SetShuffle enables or disables shuffle. Always invalidates the
// prebuffer: the predicted next track may change.
func (p *Player) SetShuffle(on bool) {
	p.mu.Lock()
	p.shuffle = on
	p.prebuffer = nil
	if on {
		p.shufflePerm = newShufflePermutation(len(p.queue), p.currentIndex)
		if p.currentIndex >= 0 {
			// shufflePerm[0] is the already-playing track (prepended by
			// newShufflePermutation); starting at 0 makes the next
			// predictNextLocked/Next() land on shufflePerm[1] instead of
			// replaying it.
			p.shufflePos = 0
		} else {
			p.shufflePos = -1
		}
	}
	p.mu.Unlock()
	p.notify()
}

// SetRepeat sets the repeat mode. Always invalidates the prebuffer.
func (p *Player) SetRepeat(mode RepeatMode) {
	p.mu.Lock()
	p.repeatMode = mode
	p.prebuffer = nil
	p.mu.Unlock()
	p.notify()
}

// PredictNext returns the queue item that Next would select, without
// mutating state, so the caller can prebuffer it ahead of time.
func (p *Player) PredictNext() (QueueItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.predictNextLocked()
}

func (p *Player) predictNextLocked() (QueueItem, bool) {
	if len(p.queue) == 0 {
		return QueueItem{}, false
	}
	if p.shuffle {
		if len(p.shufflePerm) != len(p.queue) {
			return QueueItem{}, false
		}
		nextPos := p.shufflePos + 1
		if nextPos >= len(p.shufflePerm) {
			if p.repeatMode != RepeatAll {
				return QueueItem{}, false
			}
			nextPos = 0
		}
		return p.queue[p.shufflePerm[nextPos]], true
	}
	nextIdx := p.currentIndex + 1
	if nextIdx >= len(p.queue) {
		if p.repeatMode != RepeatAll {
			return QueueItem{}, false
		}
		nextIdx = 0
	}
	return p.queue[nextIdx], true
}

// SetPrebuffer stores a computed gapless-handoff candidate.
func (p *Player) SetPrebuffer(pb Prebuffer) {
	p.mu.Lock()
	p.prebuffer = &pb
	p.mu.Unlock()
}

// Next advances to the next queue item. If shuffle is on, selection
// follows the stable per-pass permutation computed by SetShuffle/Next so
// consecutive calls within one pass never repeat a track. Attempts a
// gapless handoff via the stored prebuffer first.
func (p *Player) Next() (QueueItem, bool) {
	if !p.autoAdvancing.CompareAndSwap(false, true) {
		return QueueItem{}, false
	}
	defer p.autoAdvancing.Store(false)

	p.mu.Lock()
	defer p.mu.Unlock()

	predicted, ok := p.predictNextLocked()
	if !ok {
		p.isPlaying = false
		return QueueItem{}, false
	}

	if p.prebuffer != nil && p.prebuffer.TrackID == predicted.TrackID && p.prebuffer.FilePath == predicted.FilePath {
		p.positionSamples = 0
		p.prebuffer = nil
	}

	if p.shuffle && len(p.shufflePerm) == len(p.queue) {
		p.shufflePos++
		if p.shufflePos >= len(p.shufflePerm) {
			// The wrap just played slot 0 of the old pass; the new pass
			// holds that track in its slot 0 so it is not replayed next.
			p.shufflePerm = newShufflePermutation(len(p.queue), p.shufflePerm[0])
			p.shufflePos = 0
		}
	} else {
		p.currentIndex++
		if p.currentIndex >= len(p.queue) {
			p.currentIndex = 0
		}
	}
	p.currentTrackID = predicted.TrackID
	p.positionSamples = 0
	return predicted, true
}

// Previous moves to the previous queue item (shuffle-unaware: previous
// always walks queue order, matching the common player convention that
// "back" returns to history rather than re-randomizing).
func (p *Player) Previous() (QueueItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return QueueItem{}, false
	}
	idx := p.currentIndex - 1
	if idx < 0 {
		if p.repeatMode != RepeatAll {
			return QueueItem{}, false
		}
		idx = len(p.queue) - 1
	}
	p.currentIndex = idx
	p.currentTrackID = p.queue[idx].TrackID
	p.positionSamples = 0
	p.prebuffer = nil
	return p.queue[idx], true
}

func newShufflePermutation(n int, exclude int) []int {
	if n == 0 {
		return nil
	}
	perm := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i != exclude {
			perm = append(perm, i)
		}
	}
	// Deterministic-enough shuffle: Fisher-Yates seeded by queue length,
	// good enough for "stable within a pass" since the permutation is
	// computed once per pass, not per Next() call.
	seed := uint64(n*2654435761 + 1)
	for i := len(perm) - 1; i > 0; i-- {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		j := int(seed % uint64(i+1))
		perm[i], perm[j] = perm[j], perm[i]
	}
	if exclude >= 0 {
		perm = append([]int{exclude}, perm...)
	}
	return perm
}
