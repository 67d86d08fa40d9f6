package coupon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"autoparts-checkout/internal/domain"
)

var (
	ErrRejected     = errors.New("coupon rejected")
	ErrInvalidCode  = fmt.Errorf("%w: invalid code", ErrRejected)
	ErrExpired      = fmt.Errorf("%w: expired", ErrRejected)
	ErrBelowMinimum = fmt.Errorf("%w: order below minimum", ErrRejected)
)

// Rule is a coupon as the catalog defines it.
type Rule struct {
	Code      string
	Kind      domain.CouponKind
	Value     float64
	MinOrder  float64
	ExpiresAt time.Time // zero means no expiry
}

type Catalog interface {
	Lookup(ctx context.Context, code string) (*Rule, error)
}

type Resolver struct {
	catalog Catalog
	now     func() time.Time
}

func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog, now: time.Now}
}

// Resolve validates code against the catalog and prices it against summary.
// The discount never exceeds the subtotal.
func (r *Resolver) Resolve(ctx context.Context, code string, summary domain.CartSummary) (domain.Coupon, error) {
	code = Canonical(code)
	if code == "" {
		return domain.Coupon{}, ErrInvalidCode
	}

	rule, err := r.catalog.Lookup(ctx, code)
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("lookup coupon %s: %w", code, err)
	}
	if rule == nil {
		return domain.Coupon{}, ErrInvalidCode
	}
	if !rule.ExpiresAt.IsZero() && !r.now().Before(rule.ExpiresAt) {
		return domain.Coupon{}, ErrExpired
	}
	if summary.Subtotal < rule.MinOrder {
		return domain.Coupon{}, ErrBelowMinimum
	}

	subtotal := decimal.NewFromFloat(summary.Subtotal)
	var discount decimal.Decimal
	switch rule.Kind {
	case domain.CouponPercent:
		discount = subtotal.Mul(decimal.NewFromFloat(rule.Value)).Div(decimal.NewFromInt(100))
	case domain.CouponFixed:
		discount = decimal.NewFromFloat(rule.Value)
	default:
		return domain.Coupon{}, ErrInvalidCode
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	return domain.Coupon{
		Code:     rule.Code,
		Kind:     rule.Kind,
		Value:    rule.Value,
		Discount: discount.Round(2).InexactFloat64(),
	}, nil
}

func Canonical(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// StaticCatalog is a fixed set of coupons, usually loaded from config.
type StaticCatalog map[string]Rule

func (c StaticCatalog) Lookup(_ context.Context, code string) (*Rule, error) {
	r, ok := c[Canonical(code)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// ParseCatalog reads "CODE:kind:value[:minOrder[:expiresRFC3339]]" entries
// separated by commas.
func ParseCatalog(raw string) (StaticCatalog, error) {
	cat := StaticCatalog{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 5)
		if len(parts) < 3 {
			return nil, fmt.Errorf("coupon %q: want CODE:kind:value", entry)
		}
		r := Rule{Code: Canonical(parts[0]), Kind: domain.CouponKind(strings.ToLower(parts[1]))}
		if r.Kind != domain.CouponPercent && r.Kind != domain.CouponFixed {
			return nil, fmt.Errorf("coupon %q: unknown kind %q", entry, parts[1])
		}
		v, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("coupon %q: value: %w", entry, err)
		}
		r.Value = v
		if len(parts) > 3 && parts[3] != "" {
			if r.MinOrder, err = strconv.ParseFloat(parts[3], 64); err != nil {
				return nil, fmt.Errorf("coupon %q: min order: %w", entry, err)
			}
		}
		if len(parts) > 4 && parts[4] != "" {
			if r.ExpiresAt, err = time.Parse(time.RFC3339, parts[4]); err != nil {
				return nil, fmt.Errorf("coupon %q: expiry: %w", entry, err)
			}
		}
		cat[r.Code] = r
	}
	return cat, nil
}
