package harvest

// frontier is the BFS queue. It remembers every URL it has ever accepted so
// a URL is queued at most once per crawl.
type frontier struct {
	items  []QueueItem
	head   int
	queued map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{queued: make(map[string]struct{})}
}

// push appends item unless its URL was queued before
func (f *frontier) push(item QueueItem) bool {
	if _, ok := f.queued[item.URL]; ok {
		return false
	}
	f.queued[item.URL] = struct{}{}
	f.items = append(f.items, item)
	return true
}

func (f *frontier) pop() (QueueItem, bool) {
	if f.head >= len(f.items) {
		return QueueItem{}, false
	}
	item := f.items[f.head]
	f.items[f.head] = QueueItem{}
	f.head++
	if f.head == len(f.items) {
		f.items = f.items[:0]
		f.head = 0
	}
	return item, true
}

func (f *frontier) Len() int {
	return len(f.items) - f.head
}

func (f *frontier) seen(u string) bool {
	_, ok := f.queued[u]
	return ok
}

// pending returns the items still waiting, oldest first
func (f *frontier) pending() []QueueItem {
	return append([]QueueItem(nil), f.items[f.head:]...)
}
