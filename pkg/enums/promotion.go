package enums

import "fmt"

// PromotionType is the kind of discount a promotion puts on a product.
type PromotionType string

const (
	PromotionTypePercentage PromotionType = "PERCENTAGE"
	PromotionTypeFixed      PromotionType = "FIXED_AMOUNT"
	PromotionTypeBundle     PromotionType = "BUNDLE"
	PromotionTypeClearance  PromotionType = "CLEARANCE"
)

var validPromotionTypes = []PromotionType{
	PromotionTypePercentage,
	PromotionTypeFixed,
	PromotionTypeBundle,
	PromotionTypeClearance,
}

func (p PromotionType) String() string {
	return string(p)
}

func (p PromotionType) IsValid() bool {
	for _, candidate := range validPromotionTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePromotionType(value string) (PromotionType, error) {
	for _, candidate := range validPromotionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promotion type %q", value)
}

// CouponType is the discount shape of a checkout coupon.
type CouponType string

const (
	CouponTypePercentage CouponType = "PERCENTAGE"
	CouponTypeFixed      CouponType = "FIXED_AMOUNT"
	CouponTypeBundle     CouponType = "BUNDLE"
)

var validCouponTypes = []CouponType{CouponTypePercentage, CouponTypeFixed, CouponTypeBundle}

func (c CouponType) String() string {
	return string(c)
}

func (c CouponType) IsValid() bool {
	for _, candidate := range validCouponTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseCouponType(value string) (CouponType, error) {
	for _, candidate := range validCouponTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon type %q", value)
}
