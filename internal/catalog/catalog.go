// Package catalog хранит серверный каталог продуктов: пакеты кредитов,
// ежемесячные подписки и лайфтайм-предложения с ограниченным числом слотов.
// Цена и число кредитов всегда берутся отсюда, а не из запроса клиента.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/credit-ledger/internal/config"
	"github.com/magabrotheeeer/credit-ledger/internal/models"
)

// Product продаваемый продукт.
type Product struct {
	Key      string             `json:"key"`
	Name     string             `json:"name"`
	Kind     models.ProductKind `json:"kind"`
	Credits  int64              `json:"credits"` // с учётом бонуса
	Bonus    int64              `json:"bonus,omitempty"`
	Price    decimal.Decimal    `json:"price"`
	Currency string             `json:"currency"`
	BasePlan models.Tier        `json:"base_plan,omitempty"`
	MaxSlots int                `json:"max_slots,omitempty"`
}

// Lifetime сообщает, ограничен ли продукт слотами.
func (p Product) Lifetime() bool {
	return p.Kind == models.ProductLifetimeDeal
}

// Subscription сообщает, является ли продукт периодической подпиской.
func (p Product) Subscription() bool {
	return p.Kind == models.ProductPlan
}

// PoolID идентификатор пула слотов продукта.
func (p Product) PoolID() string {
	return strings.ToUpper(p.Key)
}

// Catalog неизменяемый после создания каталог.
type Catalog struct {
	currency       string
	signupBonus    int64
	referralReward int64
	aggregate      int
	products       map[string]Product
}

// DefaultCreditPacks пакеты кредитов по умолчанию.
func DefaultCreditPacks() []config.CreditPack {
	return []config.CreditPack{
		{Key: "pack_25", Name: "Ember", Credits: 25, Bonus: 5, Price: "1.19"},
		{Key: "pack_75", Name: "Blaze", Credits: 75, Bonus: 15, Price: "2.99"},
		{Key: "pack_200", Name: "Inferno", Credits: 200, Bonus: 50, Price: "7.99"},
		{Key: "pack_500", Name: "Supernova", Credits: 500, Bonus: 150, Price: "19.99"},
	}
}

// DefaultLifetimeDeals лайфтайм-предложения по умолчанию: 30 + 15 + 5 слотов.
func DefaultLifetimeDeals() []config.LifetimeDeal {
	return []config.LifetimeDeal{
		{Key: "starter_lifetime", Name: "Forge Lifetime", BasePlan: "STARTER", Credits: 50, Price: "49.00", MaxSlots: 30},
		{Key: "pro_lifetime", Name: "Apex Lifetime", BasePlan: "PRO", Credits: 150, Price: "99.00", MaxSlots: 15},
		{Key: "unlimited_lifetime", Name: "Titan Lifetime", BasePlan: "UNLIMITED", Credits: 500, Price: "249.00", MaxSlots: 5},
	}
}

// DefaultPlans ежемесячные подписки по умолчанию.
func DefaultPlans() []config.Plan {
	return []config.Plan{
		{Key: "starter_monthly", Name: "Starter", Tier: "STARTER", Credits: 250, Price: "5.00"},
		{Key: "pro_monthly", Name: "Pro", Tier: "PRO", Credits: 500, Price: "12.00"},
		{Key: "unlimited_monthly", Name: "Studio", Tier: "UNLIMITED", Credits: 1200, Price: "25.00"},
	}
}

// New собирает каталог из конфига. Пустые списки заменяются значениями по умолчанию,
// нулевая общая ёмкость равна сумме ёмкостей предложений.
func New(cfg config.Catalog) (*Catalog, error) {
	const op = "catalog.New"

	c := &Catalog{
		currency:       cfg.Currency,
		signupBonus:    cfg.SignupBonus,
		referralReward: cfg.ReferralReward,
		aggregate:      cfg.AggregateSlots,
		products:       make(map[string]Product),
	}
	if c.currency == "" {
		c.currency = "GBP"
	}
	packs := cfg.CreditPacks
	if len(packs) == 0 {
		packs = DefaultCreditPacks()
	}
	deals := cfg.LifetimeDeals
	if len(deals) == 0 {
		deals = DefaultLifetimeDeals()
	}
	plans := cfg.Plans
	if len(plans) == 0 {
		plans = DefaultPlans()
	}

	for _, p := range packs {
		price, err := parsePrice(p.Key, p.Price)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if p.Credits <= 0 || p.Bonus < 0 {
			return nil, fmt.Errorf("%s: pack %q: credits must be positive", op, p.Key)
		}
		if err := c.add(Product{
			Key:      p.Key,
			Name:     p.Name,
			Kind:     models.ProductCreditPack,
			Credits:  p.Credits + p.Bonus,
			Bonus:    p.Bonus,
			Price:    price,
			Currency: c.currency,
		}); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	for _, p := range plans {
		price, err := parsePrice(p.Key, p.Price)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tier := models.Tier(strings.ToUpper(p.Tier))
		if !tier.Valid() || tier == models.TierFree {
			return nil, fmt.Errorf("%s: plan %q: invalid tier %q", op, p.Key, p.Tier)
		}
		if p.Credits <= 0 {
			return nil, fmt.Errorf("%s: plan %q: credits must be positive", op, p.Key)
		}
		if err := c.add(Product{
			Key:      p.Key,
			Name:     p.Name,
			Kind:     models.ProductPlan,
			Credits:  p.Credits,
			Price:    price,
			Currency: c.currency,
			BasePlan: tier,
		}); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	sum := 0
	for _, d := range deals {
		price, err := parsePrice(d.Key, d.Price)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tier := models.Tier(strings.ToUpper(d.BasePlan))
		if !tier.Valid() || tier == models.TierFree {
			return nil, fmt.Errorf("%s: deal %q: invalid base plan %q", op, d.Key, d.BasePlan)
		}
		if d.MaxSlots <= 0 || d.Credits < 0 {
			return nil, fmt.Errorf("%s: deal %q: max_slots must be positive", op, d.Key)
		}
		if strings.EqualFold(d.Key, models.AggregatePoolID) {
			return nil, fmt.Errorf("%s: deal key %q is reserved", op, d.Key)
		}
		sum += d.MaxSlots
		if err := c.add(Product{
			Key:      d.Key,
			Name:     d.Name,
			Kind:     models.ProductLifetimeDeal,
			Credits:  d.Credits,
			Price:    price,
			Currency: c.currency,
			BasePlan: tier,
			MaxSlots: d.MaxSlots,
		}); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if c.aggregate <= 0 {
		c.aggregate = sum
	}
	return c, nil
}

func (c *Catalog) add(p Product) error {
	if p.Key == "" {
		return fmt.Errorf("product key is empty")
	}
	if _, ok := c.products[p.Key]; ok {
		return fmt.Errorf("duplicate product key %q", p.Key)
	}
	c.products[p.Key] = p
	return nil
}

func parsePrice(key, raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("product %q: invalid price %q: %w", key, raw, err)
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("product %q: price must be positive", key)
	}
	return price, nil
}

// Product возвращает продукт по ключу или ErrUnknownProduct.
func (c *Catalog) Product(key string) (Product, error) {
	p, ok := c.products[key]
	if !ok {
		return Product{}, models.ErrUnknownProduct
	}
	return p, nil
}

// Products возвращает все продукты, упорядоченные по виду и цене.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// LifetimeDeals возвращает только продукты со слотами.
func (c *Catalog) LifetimeDeals() []Product {
	var out []Product
	for _, p := range c.Products() {
		if p.Lifetime() {
			out = append(out, p)
		}
	}
	return out
}

// AggregateCapacity общая ёмкость всех лайфтайм-пулов.
func (c *Catalog) AggregateCapacity() int { return c.aggregate }

// SignupBonus кредиты, начисляемые при открытии аккаунта.
func (c *Catalog) SignupBonus() int64 { return c.signupBonus }

// ReferralReward кредиты пригласившему за первую покупку приглашённого.
func (c *Catalog) ReferralReward() int64 { return c.referralReward }

// Currency валюта каталога.
func (c *Catalog) Currency() string { return c.currency }
