package pager

import "context"

// VersionStore persists events and their ordered version history.
//
// AppendVersion looks up or creates the event for version.EventCode, assigns
// the next version number transactionally and persists the document. Two
// concurrent appends for the same event must never receive the same number.
type VersionStore interface {
	AppendVersion(ctx context.Context, version *Version) (*Version, error)
	History(ctx context.Context, eventCode string) ([]Version, error)
	GetLatest(ctx context.Context, eventCode string) (*Version, error)
}
