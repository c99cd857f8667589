package model

import (
	"time"

	"gorm.io/gorm"
)

/*

FriendAccount is a data model for a followed remote identity/site.

Id: primary key, use to identify an account
CreatedAt: time when entity is created
DeletedAt: time when entity is deleted

SiteUrl: canonical URL of the remote site
Role: relationship state with the remote site, see AccountRole
CatchAll: default rule action applied when no feed rule matches an item
Rules: ordered feed rules for this account, "has-many" relation
FeedSources: feeds polled for this account, "has-many" relation

Retention settings are independently enable-able. A disabled setting falls
back to the site-wide default from config.

*/

type AccountRole string

const (
	RolePendingOutgoing AccountRole = "pending_outgoing"
	RolePendingIncoming AccountRole = "pending_incoming"
	RoleFriend          AccountRole = "friend"
	RoleAcquaintance    AccountRole = "acquaintance"
	RoleSubscription    AccountRole = "subscription"
)

type FriendAccount struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt

	SiteUrl  string
	Role     AccountRole
	CatchAll RuleAction

	RetentionCountEnabled bool
	RetentionCount        int
	RetentionDaysEnabled  bool
	RetentionDays         int

	Rules       []FeedRule    `json:"rules" gorm:"foreignKey:AccountId;constraint:OnDelete:CASCADE;"`
	FeedSources []*FeedSource `json:"feed_sources" gorm:"foreignKey:AccountId;constraint:OnDelete:CASCADE;"`
}

// AuthorId is the synthetic author identity that automated retrievals stamp
// on content versions. A version authored by anyone else means a human
// edited the cached copy locally.
func (a FriendAccount) AuthorId() string {
	return "friendsync:" + a.Id
}

func (a FriendAccount) IsFriend() bool {
	return a.Role == RoleFriend || a.Role == RoleAcquaintance
}
