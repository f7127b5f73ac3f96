package plan

import (
	"sort"
)

// 计费周期
const (
	Weekly    = "weekly"
	Monthly   = "monthly"
	Quarterly = "quarterly"
	Yearly    = "yearly"
)

// 套餐
const (
	Starter      = "starter"
	Professional = "professional"
	Enterprise   = "enterprise"
)

// Details 套餐在某一计费周期下的价格与上传配额，Price 单位为卢比
type Details struct {
	PlanID        string
	BillingPeriod string
	Price         int64
	UploadQuota   int
	StripePriceID string
}

// Valid 配额为 0 视为无效套餐
func (d Details) Valid() bool {
	return d.UploadQuota > 0
}

// Key 形如 professional_monthly
func (d Details) Key() string {
	return Key(d.PlanID, d.BillingPeriod)
}

func Key(planID, billingPeriod string) string {
	return planID + "_" + billingPeriod
}

// Catalog 套餐目录，所有发放配额的入口共用同一份
type Catalog struct {
	entries map[string]Details
}

func NewCatalog(entries []Details) *Catalog {
	c := &Catalog{entries: make(map[string]Details, len(entries))}
	for _, e := range entries {
		c.entries[e.Key()] = e
	}
	return c
}

// Default 内置套餐表
func Default() *Catalog {
	return NewCatalog(defaultEntries())
}

// WithStripePrices 返回覆盖了 Stripe price id 的副本
func (c *Catalog) WithStripePrices(prices map[string]string) *Catalog {
	entries := make([]Details, 0, len(c.entries))
	for key, e := range c.entries {
		if id, ok := prices[key]; ok && id != "" {
			e.StripePriceID = id
		}
		entries = append(entries, e)
	}
	return NewCatalog(entries)
}

// Lookup 未知套餐或周期返回零值，调用方需用 Valid 判断
func (c *Catalog) Lookup(planID, billingPeriod string) Details {
	return c.entries[Key(planID, billingPeriod)]
}

// All 按套餐、周期顺序返回全部条目
func (c *Catalog) All() []Details {
	out := make([]Details, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlanID != out[j].PlanID {
			return planRank[out[i].PlanID] < planRank[out[j].PlanID]
		}
		return periodRank[out[i].BillingPeriod] < periodRank[out[j].BillingPeriod]
	})
	return out
}

var planRank = map[string]int{Starter: 0, Professional: 1, Enterprise: 2}

var periodRank = map[string]int{Weekly: 0, Monthly: 1, Quarterly: 2, Yearly: 3}

func defaultEntries() []Details {
	type row struct {
		plan   string
		short  string
		prices [4]int64
		quotas [4]int
	}
	rows := []row{
		{Starter, "starter", [4]int64{699, 2299, 6299, 23999}, [4]int{2, 8, 25, 100}},
		{Professional, "pro", [4]int64{1499, 5499, 14999, 55999}, [4]int{5, 20, 65, 260}},
		{Enterprise, "enterprise", [4]int64{3999, 15999, 43999, 159999}, [4]int{15, 60, 200, 800}},
	}
	periods := [4]string{Weekly, Monthly, Quarterly, Yearly}

	entries := make([]Details, 0, len(rows)*len(periods))
	for _, r := range rows {
		for i, period := range periods {
			entries = append(entries, Details{
				PlanID:        r.plan,
				BillingPeriod: period,
				Price:         r.prices[i],
				UploadQuota:   r.quotas[i],
				StripePriceID: "price_" + r.short + "_" + period,
			})
		}
	}
	return entries
}
