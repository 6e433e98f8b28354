package hubapi

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/nhle/workhub/internal/model"
)

const (
	defaultTitle       = "New notification"
	defaultDescription = "You have a new notification."
)

// Normalizer turns wire DTOs into canonical notifications. The zero value
// is not usable; create one with NewNormalizer and override fields as
// needed.
type Normalizer struct {
	// Location interprets timestamps that carry no zone.
	Location *time.Location

	// Now supplies the fallback timestamp and the reference for TimeAgo.
	Now func() time.Time

	// Language selects the relative-time strings ("en", "ko").
	Language string

	policy *bluemonday.Policy
}

// NewNormalizer returns a normalizer using the local zone, the wall clock,
// English strings and a strict HTML policy.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		Location: time.Local,
		Now:      time.Now,
		Language: "en",
		policy:   bluemonday.StrictPolicy(),
	}
}

// Normalize shapes dto into a model.Notification. It never fails:
// missing or malformed fields get defaults.
func (nz *Normalizer) Normalize(dto NotificationDTO) model.Notification {
	now := nz.now()

	et := model.ParseEventType(firstNonEmpty(dto.EventType, dto.Type))
	cat, ok := model.ParseCategory(dto.Category)
	if !ok {
		cat = et.Category()
	}

	createdAt := ParseTimestamp(
		firstNonEmpty(dto.CreatedAt.String(), dto.CreatedDate.String()),
		nz.location(), now,
	)

	n := model.Notification{
		ID:          firstNonEmpty(dto.ID.String(), dto.NotificationID.String()),
		EventType:   et,
		Category:    cat,
		Title:       nz.Sanitize(dto.Title),
		Description: nz.Sanitize(firstNonEmpty(dto.Description, dto.Message, dto.Content)),
		Read:        readState(dto),
		CreatedAt:   createdAt,
		TimeAgo:     RelativeTime(createdAt, now, nz.Language),

		UserID:       firstNonEmpty(dto.UserID.String(), dto.ReceiverID.String()),
		SenderUserID: firstNonEmpty(dto.SenderUserID.String(), dto.SenderID.String()),
		ActorName:    strings.TrimSpace(firstNonEmpty(dto.ActorName, dto.SenderName)),
		AvatarURL:    firstNonEmpty(dto.AvatarURL, dto.SenderAvatarURL),
		ActorType:    parseActorType(dto.ActorType),

		Link:        RewriteLink(firstNonEmpty(dto.Link, dto.URL)),
		ExternalURL: strings.TrimSpace(dto.ExternalURL),

		ProjectID: dto.ProjectID.String(),
		NodeID:    firstNonEmpty(dto.NodeID.String(), dto.ProjectNodeID.String()),
		PostID:    dto.PostID.String(),
		CommentID: dto.CommentID.String(),
		CSPostID:  dto.CSPostID.String(),
		CSQnaID:   dto.CSQnaID.String(),
		TicketID:  dto.TicketID.String(),
	}

	if n.Title == "" {
		n.Title = defaultTitle
	}
	if n.Description == "" {
		n.Description = defaultDescription
	}
	return n
}

// Sanitize strips markup from rich-text fields and collapses whitespace.
func (nz *Normalizer) Sanitize(s string) string {
	if s == "" {
		return ""
	}
	p := nz.policy
	if p == nil {
		p = bluemonday.StrictPolicy()
	}
	plain := html.UnescapeString(p.Sanitize(s))
	return strings.Join(strings.Fields(plain), " ")
}

func (nz *Normalizer) now() time.Time {
	if nz.Now != nil {
		return nz.Now()
	}
	return time.Now()
}

func (nz *Normalizer) location() *time.Location {
	if nz.Location != nil {
		return nz.Location
	}
	return time.Local
}

func readState(dto NotificationDTO) bool {
	switch {
	case dto.Read != nil:
		return *dto.Read
	case dto.IsRead != nil:
		return *dto.IsRead
	default:
		return dto.ReadAt != nil && dto.ReadAt.String() != ""
	}
}

func parseActorType(raw string) model.ActorType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "system":
		return model.ActorTypeSystem
	case "user":
		return model.ActorTypeUser
	}
	return ""
}

var projectNodePath = regexp.MustCompile(`/projects/([^/?#]+)/nodes/([^/?#]+)`)

var linkSuffixes = []string{"/comments", "/checklists"}

// RewriteLink converts an API-shaped link into a UI route. Links under
// /api/ that name a project node become /projects/{p}/nodes/{n}; any
// trailing /comments or /checklists segment is stripped from the path,
// keeping any query or fragment. Absolute links to other sites are
// returned unchanged.
func RewriteLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	path, tail := raw, ""
	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		if !strings.HasPrefix(u.Path, "/api/") {
			return raw
		}
		path = u.Path
	} else if i := strings.IndexAny(raw, "?#"); i >= 0 {
		path, tail = raw[:i], raw[i:]
	}

	if strings.HasPrefix(path, "/api/") {
		if m := projectNodePath.FindStringSubmatch(path); m != nil {
			return "/projects/" + m[1] + "/nodes/" + m[2]
		}
	}

	path = strings.TrimRight(path, "/")
	for _, suffix := range linkSuffixes {
		path = strings.TrimSuffix(path, suffix)
	}
	if path == "" {
		path = "/"
	}
	return path + tail
}

var timestampPattern = regexp.MustCompile(
	`^(\d{4})-(\d{1,2})-(\d{1,2})` +
		`(?:[T ](\d{1,2}):(\d{2})(?::(\d{2})(?:[.,](\d+))?)?)?` +
		`\s*(Z|z|[+-]\d{2}:?\d{2})?$`,
)

// ParseTimestamp parses an ISO-8601-like timestamp. A string carrying Z
// or a numeric offset is absolute; one without is read as wall-clock time
// in loc. Fractional seconds beyond milliseconds are truncated. Purely
// numeric input is taken as Unix milliseconds (or seconds when short).
// Anything else yields now. The result depends only on the arguments.
func ParseTimestamp(s string, loc *time.Location, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return now
	}
	if loc == nil {
		loc = time.UTC
	}

	if isDigits(s) {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return now
		}
		if len(s) <= 10 {
			return time.Unix(v, 0).In(loc)
		}
		return time.UnixMilli(v).In(loc)
	}

	m := timestampPattern.FindStringSubmatch(s)
	if m == nil {
		return now
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	sec, _ := strconv.Atoi(m[6])
	if month < 1 || month > 12 || day < 1 || day > daysIn(year, time.Month(month)) ||
		hour > 23 || minute > 59 || sec > 60 {
		return now
	}

	ms := 0
	if frac := m[7]; frac != "" {
		if len(frac) > 3 {
			frac = frac[:3]
		}
		for len(frac) < 3 {
			frac += "0"
		}
		ms, _ = strconv.Atoi(frac)
	}

	zone := loc
	if z := m[8]; z != "" {
		zone = parseZone(z)
	}

	return time.Date(year, time.Month(month), day, hour, minute, sec, ms*int(time.Millisecond), zone)
}

func parseZone(z string) *time.Location {
	if z == "Z" || z == "z" {
		return time.UTC
	}
	sign := 1
	if z[0] == '-' {
		sign = -1
	}
	digits := strings.ReplaceAll(z[1:], ":", "")
	hh, _ := strconv.Atoi(digits[:2])
	mm, _ := strconv.Atoi(digits[2:])
	offset := sign * (hh*3600 + mm*60)
	if offset == 0 {
		return time.UTC
	}
	return time.FixedZone(z, offset)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// daysIn returns the number of days in month of year.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
