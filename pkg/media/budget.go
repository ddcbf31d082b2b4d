package media

// Counts is a snapshot of generated media per kind.
type Counts struct {
	Images int `json:"images"`
	Videos int `json:"videos"`
	Music  int `json:"music"`
}

func (c Counts) get(kind Kind) int {
	switch kind {
	case KindImage:
		return c.Images
	case KindVideo:
		return c.Videos
	case KindMusic:
		return c.Music
	}
	return 0
}

func (c *Counts) add(kind Kind, n int) {
	switch kind {
	case KindImage:
		c.Images += n
	case KindVideo:
		c.Videos += n
	case KindMusic:
		c.Music += n
	}
}

// Budget enforces the per-adventure generation caps. It does no locking;
// callers hold the lock that guards the story state it belongs to.
//
// Images are capped at one for the adventure, a single video is allowed
// once the video window opens at the climax, and music is uncapped.
// Reservations let a caller claim a slot before a long provider call and
// give it back if the call fails, so only successes consume budget.
type Budget struct {
	counts      Counts
	reserved    Counts
	videoWindow bool
}

// NewBudget returns an empty budget with the video window closed.
func NewBudget() *Budget {
	return &Budget{}
}

// CanGenerate reports whether a new request of kind fits the budget.
func (b *Budget) CanGenerate(kind Kind) bool {
	inFlight := b.counts.get(kind) + b.reserved.get(kind)
	switch kind {
	case KindImage:
		return inFlight < 1
	case KindVideo:
		return b.videoWindow && inFlight < 1
	case KindMusic:
		return true
	}
	return false
}

// Reserve claims a slot for kind. It returns false when the budget is spent.
func (b *Budget) Reserve(kind Kind) bool {
	if !b.CanGenerate(kind) {
		return false
	}
	b.reserved.add(kind, 1)
	return true
}

// Commit turns a reservation into a recorded generation.
func (b *Budget) Commit(kind Kind) {
	if b.reserved.get(kind) > 0 {
		b.reserved.add(kind, -1)
	}
	b.counts.add(kind, 1)
}

// Release drops a reservation without recording anything.
func (b *Budget) Release(kind Kind) {
	if b.reserved.get(kind) > 0 {
		b.reserved.add(kind, -1)
	}
}

// Record counts a successful generation that was not reserved up front.
func (b *Budget) Record(kind Kind) {
	b.counts.add(kind, 1)
}

// OpenVideoWindow allows the climax video.
func (b *Budget) OpenVideoWindow() {
	b.videoWindow = true
}

// VideoWindowOpen reports whether the climax has opened the video window.
func (b *Budget) VideoWindowOpen() bool {
	return b.videoWindow
}

// Counts returns the recorded generations.
func (b *Budget) Counts() Counts {
	return b.counts
}
