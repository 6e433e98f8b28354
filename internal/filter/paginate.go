package filter

import "github.com/nhle/workhub/internal/model"

// Page is one page of a notification list.
type Page struct {
	Items      []model.Notification
	Number     int
	Size       int
	Total      int
	TotalPages int
}

// HasPrev reports whether an earlier page exists.
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool { return p.Number < p.TotalPages }

// Paginate returns the 1-based page number of ns. The page number is
// clamped to the valid range; a size below 1 is treated as 1. An empty
// list has one empty page.
func Paginate(ns []model.Notification, number, size int) Page {
	if size < 1 {
		size = 1
	}
	total := len(ns)
	pages := max((total+size-1)/size, 1)
	number = min(max(number, 1), pages)

	start := min((number-1)*size, total)
	end := min(start+size, total)

	items := make([]model.Notification, end-start)
	copy(items, ns[start:end])

	return Page{
		Items:      items,
		Number:     number,
		Size:       size,
		Total:      total,
		TotalPages: pages,
	}
}
