package pricing

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/BatmanBruc/club-membership-bot/types"
)

const (
	KeyPriceMonthly    = "price_monthly"
	KeyPriceYearly     = "price_yearly"
	KeyPriceOldMonthly = "price_old_monthly"
	KeyPriceOldYearly  = "price_old_yearly"
	KeyPaymentMethods  = "payment_methods"
	KeyPaymentDetails  = "payment_details"
)

var defaults = map[string]string{
	KeyPriceMonthly:    "500",
	KeyPriceYearly:     "5000",
	KeyPriceOldMonthly: "300",
	KeyPriceOldYearly:  "3000",
	KeyPaymentMethods:  "UPI,Bank Transfer",
}

// Quote is what one member pays for one plan.
type Quote struct {
	Plan       types.Plan
	Price      int
	Days       int
	Discounted bool
}

// Catalog reads prices and payment methods from the settings collection,
// falling back to built-in defaults.
type Catalog struct {
	settings   types.SettingsStore
	oldMembers types.OldMemberStore
}

func NewCatalog(settings types.SettingsStore, oldMembers types.OldMemberStore) *Catalog {
	return &Catalog{settings: settings, oldMembers: oldMembers}
}

func (c *Catalog) setting(ctx context.Context, key string) string {
	v, err := c.settings.GetSetting(ctx, key)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			log.Printf("Failed to read setting %s: %v", key, err)
		}
		return defaults[key]
	}
	if strings.TrimSpace(v) == "" {
		return defaults[key]
	}
	return v
}

func (c *Catalog) price(ctx context.Context, key string) int {
	raw := c.setting(ctx, key)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		log.Printf("Invalid price in setting %s: %q", key, raw)
		n, _ = strconv.Atoi(defaults[key])
	}
	return n
}

// IsOldMember never fails: a store error means no discount.
func (c *Catalog) IsOldMember(ctx context.Context, userID int64) bool {
	ok, err := c.oldMembers.IsConfirmedOldMember(ctx, userID)
	if err != nil {
		log.Printf("Failed to check old member %d: %v", userID, err)
		return false
	}
	return ok
}

func (c *Catalog) Quote(ctx context.Context, userID int64, plan types.Plan) Quote {
	discounted := c.IsOldMember(ctx, userID)
	return c.quote(ctx, plan, discounted)
}

func (c *Catalog) quote(ctx context.Context, plan types.Plan, discounted bool) Quote {
	key := KeyPriceMonthly
	switch {
	case plan == types.PlanYearly && discounted:
		key = KeyPriceOldYearly
	case plan == types.PlanYearly:
		key = KeyPriceYearly
	case discounted:
		key = KeyPriceOldMonthly
	}
	return Quote{Plan: plan, Price: c.price(ctx, key), Days: plan.Days(), Discounted: discounted}
}

// Both returns the monthly and yearly quotes shown on the plan menu.
func (c *Catalog) Both(ctx context.Context, userID int64) (monthly, yearly Quote) {
	discounted := c.IsOldMember(ctx, userID)
	return c.quote(ctx, types.PlanMonthly, discounted), c.quote(ctx, types.PlanYearly, discounted)
}

func (c *Catalog) Methods(ctx context.Context) []string {
	var out []string
	for _, m := range strings.Split(c.setting(ctx, KeyPaymentMethods), ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func (c *Catalog) Details(ctx context.Context) string {
	return c.setting(ctx, KeyPaymentDetails)
}

// MatchMethod finds reply in methods, ignoring case and surrounding space.
func MatchMethod(methods []string, reply string) (string, bool) {
	reply = strings.TrimSpace(reply)
	for _, m := range methods {
		if strings.EqualFold(m, reply) {
			return m, true
		}
	}
	return "", false
}
