package sync

import (
	"net/url"

	"github.com/nhle/workhub/internal/hubapi"
	"github.com/nhle/workhub/internal/model"
)

// NotificationsPath is the fallback navigation target.
const NotificationsPath = "/notifications"

// ResolveLink returns the navigation target for n. An explicit link
// (after rewriting) wins, then the external URL, then a path built from
// the most specific related ids present: customer-support ticket or post,
// project node post, project node, project. Otherwise the notification
// list.
func ResolveLink(n model.Notification) string {
	if link := hubapi.RewriteLink(n.Link); link != "" {
		return link
	}
	if n.ExternalURL != "" {
		return n.ExternalURL
	}

	esc := url.PathEscape
	switch {
	case n.TicketID != "":
		return "/cs/tickets/" + esc(n.TicketID)
	case n.CSPostID != "" && n.ProjectID != "":
		return "/projects/" + esc(n.ProjectID) + "/cs-posts/" + esc(n.CSPostID)
	case n.CSPostID != "":
		return "/cs-posts/" + esc(n.CSPostID)
	case n.CSQnaID != "":
		return "/cs-qna/" + esc(n.CSQnaID)
	case n.ProjectID != "" && n.NodeID != "" && n.PostID != "":
		return "/projects/" + esc(n.ProjectID) + "/nodes/" + esc(n.NodeID) + "/posts/" + esc(n.PostID)
	case n.ProjectID != "" && n.NodeID != "":
		return "/projects/" + esc(n.ProjectID) + "/nodes/" + esc(n.NodeID)
	case n.ProjectID != "":
		return "/projects/" + esc(n.ProjectID)
	}
	return NotificationsPath
}
