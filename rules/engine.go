// Package rules evaluates per-account feed rules against incoming items.
package rules

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/friendnet-labs/friendsync/model"
	Logger "github.com/friendnet-labs/friendsync/utils/log"
)

const (
	// MaxRegexLength caps a rule's pattern.
	MaxRegexLength = 10 * 1024
	// MaxReplaceLength caps a replace rule's template.
	MaxReplaceLength = 10 * 1024
)

// backrefPattern rewrites \1-style backreferences from imported rule sets
// into the ${1} form the regexp package substitutes.
var backrefPattern = regexp.MustCompile(`\\(\d+)`)

type compiledRule struct {
	rule model.FeedRule
	re   *regexp.Regexp
}

// RuleContext holds an account's compiled rules and catch-all action for
// the duration of one batch. Build one per account per batch; there is no
// shared cache between batches.
type RuleContext struct {
	rules    []compiledRule
	catchAll model.RuleAction
}

// ValidateRules drops invalid rules and returns the rest in evaluation
// order. Invalid entries are skipped one by one so a partially valid rule
// set can still be saved.
func ValidateRules(in []model.FeedRule) []model.FeedRule {
	out := []model.FeedRule{}
	for _, rule := range in {
		if err := validateRule(rule); err != nil {
			Logger.LogV2.Debugf("dropping invalid feed rule: ", err)
			continue
		}
		out = append(out, rule)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func validateRule(rule model.FeedRule) error {
	if rule.Field.PersistedField() == "" {
		return fmt.Errorf("unknown rule field %q", rule.Field)
	}
	if rule.Regex == "" {
		return fmt.Errorf("empty regex")
	}
	if len(rule.Regex) > MaxRegexLength {
		return fmt.Errorf("regex exceeds %d bytes", MaxRegexLength)
	}
	if _, err := compilePattern(rule.Regex); err != nil {
		return fmt.Errorf("regex does not compile: %w", err)
	}
	switch rule.Action {
	case model.ActionAccept, model.ActionTrash, model.ActionDelete:
	case model.ActionReplace:
		if rule.Replace == "" {
			return fmt.Errorf("replace rule without replacement")
		}
		if len(rule.Replace) > MaxReplaceLength {
			return fmt.Errorf("replacement exceeds %d bytes", MaxReplaceLength)
		}
	default:
		return fmt.Errorf("unknown rule action %q", rule.Action)
	}
	return nil
}

// compilePattern compiles with case-insensitive and dot-matches-newline
// flags. Go regexps are unicode-aware without a flag.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?is)" + pattern)
}

// NewRuleContext compiles the account's rules, silently skipping any that
// fail validation, and captures the catch-all action.
func NewRuleContext(account *model.FriendAccount) *RuleContext {
	ctx := &RuleContext{catchAll: account.CatchAll}
	if ctx.catchAll == "" {
		ctx.catchAll = model.ActionAccept
	}
	for _, rule := range ValidateRules(account.Rules) {
		re, err := compilePattern(rule.Regex)
		if err != nil {
			continue
		}
		ctx.rules = append(ctx.rules, compiledRule{rule: rule, re: re})
	}
	return ctx
}

// Apply evaluates the rules against the item in stored order and returns
// the terminal action. Replace matches rewrite the field value for later
// rules and never terminate; the first matching non-replace rule decides
// the action while evaluation continues so later replaces still land.
//
// The early pass (full=false) is a cheap pre-normalization check whose only
// meaningful outcome is delete; it leaves the item untouched. The full pass
// accumulates transforms on the item, keyed by persisted field name, and a
// trash outcome also writes a status override into the transform map.
func (c *RuleContext) Apply(item *model.FeedItem, full bool) model.RuleAction {
	transforms := map[string]string{}
	var terminal model.RuleAction

	for _, cr := range c.rules {
		field := cr.rule.Field.PersistedField()
		value := fieldValue(item, cr.rule.Field, transforms)
		if !cr.re.MatchString(value) {
			continue
		}
		if cr.rule.Action == model.ActionReplace {
			transforms[field] = cr.re.ReplaceAllString(value, expandTemplate(cr.rule.Replace))
			continue
		}
		if terminal == "" {
			terminal = cr.rule.Action
		}
	}

	if terminal == "" {
		terminal = c.catchAll
	}

	if full {
		if terminal == model.ActionTrash {
			transforms[model.TransformedStatusField] = string(model.StatusTrash)
		}
		item.Transforms = transforms
		if terminal == model.ActionDelete {
			item.Deleted = true
		}
	}
	return terminal
}

// fieldValue reads the item's value for a rule field, honoring a transform
// already accumulated for that field by an earlier replace rule.
func fieldValue(item *model.FeedItem, field model.RuleField, transforms map[string]string) string {
	if v, ok := transforms[field.PersistedField()]; ok {
		return v
	}
	switch field {
	case model.FieldTitle:
		return item.Title
	case model.FieldContent:
		return item.Content
	case model.FieldPermalink:
		return item.Permalink
	case model.FieldAuthor:
		return item.Author
	}
	return ""
}

func expandTemplate(template string) string {
	return backrefPattern.ReplaceAllString(template, "$${$1}")
}
