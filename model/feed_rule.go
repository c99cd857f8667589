package model

/*

FeedRule is one ordered, per-account filtering rule applied to incoming
feed items.

Position: evaluation order within the account
Field: which item field the regex runs against, a closed enum
Regex: case-insensitive, dot-matches-newline pattern, length capped
Action: accept, trash, delete or replace
Replace: replacement template, only meaningful for the replace action

*/

type RuleField string

const (
	FieldTitle     RuleField = "title"
	FieldContent   RuleField = "content"
	FieldPermalink RuleField = "permalink"
	FieldAuthor    RuleField = "author"
)

type RuleAction string

const (
	ActionAccept  RuleAction = "accept"
	ActionTrash   RuleAction = "trash"
	ActionDelete  RuleAction = "delete"
	ActionReplace RuleAction = "replace"
)

type FeedRule struct {
	Id        string `gorm:"primaryKey"`
	AccountId string `gorm:"index"`
	Position  int

	Field   RuleField
	Regex   string
	Action  RuleAction
	Replace string
}

// PersistedField maps a rule field to the name of the persisted content
// field its transform applies to. Unknown fields map to the empty string.
func (f RuleField) PersistedField() string {
	switch f {
	case FieldTitle:
		return "post_title"
	case FieldContent:
		return "post_content"
	case FieldPermalink:
		return "guid"
	case FieldAuthor:
		return "author"
	}
	return ""
}

// TransformedStatusField is the transform map key a trash rule writes its
// status override under.
const TransformedStatusField = "post_status"
