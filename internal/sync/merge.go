package sync

import "github.com/nhle/workhub/internal/model"

// Merge overlays incoming onto current by id and returns a new slice
// sorted newest first. Items in incoming replace items with the same id;
// when incoming repeats an id the last occurrence wins. Neither input is
// modified.
func Merge(current, incoming []model.Notification) []model.Notification {
	byID := make(map[string]int, len(current)+len(incoming))
	out := make([]model.Notification, 0, len(current)+len(incoming))

	for _, n := range current {
		if i, ok := byID[n.ID]; ok {
			out[i] = n
			continue
		}
		byID[n.ID] = len(out)
		out = append(out, n)
	}
	for _, n := range incoming {
		if i, ok := byID[n.ID]; ok {
			out[i] = n
			continue
		}
		byID[n.ID] = len(out)
		out = append(out, n)
	}

	model.SortNewestFirst(out)
	return out
}
