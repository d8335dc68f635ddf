// Package privacy classifies collected field values into data categories
// and applies collection, anonymization and retention rules to them.
//
// Classification is an ordered list of rules evaluated first-match-wins;
// a value matched by no rule is Public. Collection rules decide per category
// whether a field may be kept and whether it must be anonymized.
// Retention is applied by EnforceRetention, a pure function of the items,
// the policies and the current time.
package privacy
