package cdphost

import "github.com/chromedp/cdproto/target"

// registry gives DevTools target IDs stable integer tab IDs and remembers
// the order targets were first seen in.
type registry struct {
	ids     map[target.ID]int
	targets map[int]target.ID
	seen    []target.ID
	next    int
}

func newRegistry() registry {
	return registry{
		ids:     make(map[target.ID]int),
		targets: make(map[int]target.ID),
		next:    1,
	}
}

func (r *registry) id(tid target.ID) int {
	if id, ok := r.ids[tid]; ok {
		return id
	}
	id := r.next
	r.next++
	r.ids[tid] = id
	r.targets[id] = tid
	r.seen = append(r.seen, tid)
	return id
}

func (r *registry) lookup(tid target.ID) (int, bool) {
	id, ok := r.ids[tid]
	return id, ok
}

func (r *registry) target(id int) (target.ID, bool) {
	tid, ok := r.targets[id]
	return tid, ok
}

func (r *registry) forget(tid target.ID) {
	id, ok := r.ids[tid]
	if !ok {
		return
	}
	delete(r.ids, tid)
	delete(r.targets, id)
	for i, s := range r.seen {
		if s == tid {
			r.seen = append(r.seen[:i], r.seen[i+1:]...)
			break
		}
	}
}

// pages filters infos to page targets other than own, registers new ones and
// returns them in first-seen order. Targets that disappeared are forgotten.
func (r *registry) pages(infos []*target.Info, own target.ID) []*target.Info {
	byID := make(map[target.ID]*target.Info, len(infos))
	for _, info := range infos {
		if info == nil || info.Type != "page" || info.TargetID == own {
			continue
		}
		byID[info.TargetID] = info
		r.id(info.TargetID)
	}
	var gone []target.ID
	out := make([]*target.Info, 0, len(byID))
	for _, tid := range r.seen {
		if info, ok := byID[tid]; ok {
			out = append(out, info)
		} else {
			gone = append(gone, tid)
		}
	}
	for _, tid := range gone {
		r.forget(tid)
	}
	return out
}
