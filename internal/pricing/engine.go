package pricing

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// PriceInput identifies the product being priced.
type PriceInput struct {
	BasePriceCents int64
	ProductID      uuid.UUID
	CategoryID     *uuid.UUID
	Gateway        enums.Gateway
}

// AppliedRule records the delta one rule contributed.
type AppliedRule struct {
	RuleID     uuid.UUID        `json:"rule_id"`
	Name       string           `json:"name"`
	Scope      enums.RuleScope  `json:"scope"`
	Type       enums.RuleType   `json:"type"`
	AmountType enums.AmountType `json:"amount_type"`
	Value      decimal.Decimal  `json:"value"`
	Priority   int              `json:"priority"`
	DeltaCents int64            `json:"delta_cents"`
}

// GatewayFees is the fee a gateway adds on top of an amount.
type GatewayFees struct {
	Gateway      enums.Gateway   `json:"gateway"`
	FixedCents   int64           `json:"fixed_cents"`
	Percent      decimal.Decimal `json:"percent"`
	PercentCents int64           `json:"percent_cents"`
	TotalCents   int64           `json:"total_cents"`
}

// PriceResult is the outcome of CalculateFinalPrice.
type PriceResult struct {
	BasePriceCents  int64         `json:"base_price_cents"`
	FinalPriceCents int64         `json:"final_price_cents"`
	AppliedRules    []AppliedRule `json:"applied_rules"`
	GatewayFees     *GatewayFees  `json:"gateway_fees,omitempty"`
}

// CalculateFinalPrice applies the matching rules in one pass ordered by priority
// (highest first), then the gateway fee. Only the final result is clamped at zero.
func CalculateFinalPrice(in PriceInput, rules []models.PriceRule, fee *models.GatewayFee) PriceResult {
	matching := MatchingRules(rules, in.ProductID, in.CategoryID)

	price := decimal.NewFromInt(in.BasePriceCents)
	applied := make([]AppliedRule, 0, len(matching))
	for _, rule := range matching {
		delta := ruleDelta(rule, price)
		if rule.Type == enums.RuleTypeDiscount {
			delta = delta.Neg()
		}
		price = price.Add(delta)
		applied = append(applied, AppliedRule{
			RuleID:     rule.ID,
			Name:       rule.Name,
			Scope:      rule.Scope,
			Type:       rule.Type,
			AmountType: rule.AmountType,
			Value:      rule.Value,
			Priority:   rule.Priority,
			DeltaCents: delta.IntPart(),
		})
	}

	result := PriceResult{
		BasePriceCents:  in.BasePriceCents,
		FinalPriceCents: price.IntPart(),
		AppliedRules:    applied,
	}
	if fee != nil && fee.Active {
		fees := ApplyGatewayFee(result.FinalPriceCents, fee)
		result.GatewayFees = &fees
		result.FinalPriceCents += fees.TotalCents
	}
	if result.FinalPriceCents < 0 {
		result.FinalPriceCents = 0
	}
	return result
}

// MatchingRules filters rules by scope and returns them sorted for application.
// Ties on priority fall back to creation time and then id so the order is stable.
func MatchingRules(rules []models.PriceRule, productID uuid.UUID, categoryID *uuid.UUID) []models.PriceRule {
	out := make([]models.PriceRule, 0, len(rules))
	for _, rule := range rules {
		if ruleMatches(rule, productID, categoryID) {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func ruleMatches(rule models.PriceRule, productID uuid.UUID, categoryID *uuid.UUID) bool {
	switch rule.Scope {
	case enums.RuleScopeGlobal:
		return true
	case enums.RuleScopeProduct:
		return rule.TargetID != nil && *rule.TargetID == productID
	case enums.RuleScopeCategory:
		return rule.TargetID != nil && categoryID != nil && *rule.TargetID == *categoryID
	}
	return false
}

func ruleDelta(rule models.PriceRule, price decimal.Decimal) decimal.Decimal {
	if rule.AmountType == enums.AmountTypePercentage {
		return percentOf(price, rule.Value)
	}
	return rule.Value.Round(0)
}

// ApplyGatewayFee computes the fixed plus percentage fee over amountCents.
func ApplyGatewayFee(amountCents int64, fee *models.GatewayFee) GatewayFees {
	if fee == nil {
		return GatewayFees{}
	}
	percentCents := percentOf(decimal.NewFromInt(amountCents), fee.PercentFee).IntPart()
	return GatewayFees{
		Gateway:      fee.Gateway,
		FixedCents:   fee.FixedFeeCents,
		Percent:      fee.PercentFee,
		PercentCents: percentCents,
		TotalCents:   fee.FixedFeeCents + percentCents,
	}
}

// percentOf returns amount*pct/100 rounded to whole minor units.
func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(0)
}
