package repositories

import (
	"courier/domain"
	"sort"
	"time"

	"github.com/samber/lo"
)

// predicate is one parameterized condition over a stored notification.
type predicate func(domain.Notification) bool

type notificationQuery struct {
	predicates []predicate
	offset     int
	limit      int
}

// newNotificationQuery turns a filter into predicates. Zero-valued fields
// add nothing, so an empty filter matches every row.
func newNotificationQuery(filter domain.NotificationFilter) notificationQuery {
	q := notificationQuery{offset: max(filter.Offset, 0), limit: filter.Limit}
	if len(filter.Types) > 0 {
		q.predicates = append(q.predicates, hasType(filter.Types))
	}
	if filter.ChatID != "" {
		q.predicates = append(q.predicates, inChat(filter.ChatID))
	}
	if filter.UnreadOnly {
		q.predicates = append(q.predicates, unread())
	}
	if !filter.Since.IsZero() {
		q.predicates = append(q.predicates, createdSince(filter.Since))
	}
	return q
}

func hasType(types []domain.NotificationType) predicate {
	return func(n domain.Notification) bool { return lo.Contains(types, n.Type) }
}

func inChat(chatID string) predicate {
	return func(n domain.Notification) bool { return n.Payload.ChatID == chatID }
}

func unread() predicate {
	return func(n domain.Notification) bool { return !n.IsRead }
}

func createdSince(since time.Time) predicate {
	return func(n domain.Notification) bool { return !n.CreatedAt.Before(since) }
}

func (q notificationQuery) match(n domain.Notification) bool {
	for _, p := range q.predicates {
		if !p(n) {
			return false
		}
	}
	return true
}

// apply filters, orders by priority bucket then recency, and pages.
func (q notificationQuery) apply(rows []domain.Notification) []domain.Notification {
	matched := lo.Filter(rows, func(n domain.Notification, _ int) bool { return q.match(n) })
	sort.SliceStable(matched, func(i, j int) bool {
		ri, rj := matched[i].Priority.Rank(), matched[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if q.offset >= len(matched) {
		return []domain.Notification{}
	}
	matched = matched[q.offset:]
	if q.limit > 0 && q.limit < len(matched) {
		matched = matched[:q.limit]
	}
	return matched
}
