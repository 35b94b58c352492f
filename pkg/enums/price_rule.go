package enums

import "fmt"

// RuleScope selects which products a price rule targets.
type RuleScope string

const (
	RuleScopeProduct  RuleScope = "PRODUCT"
	RuleScopeCategory RuleScope = "CATEGORY"
	RuleScopeGlobal   RuleScope = "GLOBAL"
)

var validRuleScopes = []RuleScope{RuleScopeProduct, RuleScopeCategory, RuleScopeGlobal}

func (s RuleScope) String() string {
	return string(s)
}

func (s RuleScope) IsValid() bool {
	for _, candidate := range validRuleScopes {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseRuleScope(value string) (RuleScope, error) {
	for _, candidate := range validRuleScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rule scope %q", value)
}

// RuleType tells whether a rule lowers (DISCOUNT) or raises (CHARGE) the price.
type RuleType string

const (
	RuleTypeDiscount RuleType = "DISCOUNT"
	RuleTypeCharge   RuleType = "CHARGE"
)

var validRuleTypes = []RuleType{RuleTypeDiscount, RuleTypeCharge}

func (t RuleType) String() string {
	return string(t)
}

func (t RuleType) IsValid() bool {
	for _, candidate := range validRuleTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseRuleType(value string) (RuleType, error) {
	for _, candidate := range validRuleTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rule type %q", value)
}

// AmountType tells how a rule value is interpreted.
type AmountType string

const (
	AmountTypeFixed      AmountType = "FIXED"
	AmountTypePercentage AmountType = "PERCENTAGE"
)

var validAmountTypes = []AmountType{AmountTypeFixed, AmountTypePercentage}

func (a AmountType) String() string {
	return string(a)
}

func (a AmountType) IsValid() bool {
	for _, candidate := range validAmountTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

func ParseAmountType(value string) (AmountType, error) {
	for _, candidate := range validAmountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid amount type %q", value)
}
