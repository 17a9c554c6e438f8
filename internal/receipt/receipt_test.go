package receipt

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Warranty", func() {
	expiry := time.Date(2026, time.January, 10, 14, 20, 0, 0, time.UTC)

	Describe("MarshalJSON", func() {
		It("encodes no warranty as hasWarranty false only", func() {
			data, err := json.Marshal(NoWarranty())
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(MatchJSON(`{"hasWarranty": false}`))
		})

		It("encodes coverage fields", func() {
			data, err := json.Marshal(Covered(Coverage{Period: "2 years", Expiry: expiry, IsExpiring: true}))
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(MatchJSON(`{
				"hasWarranty": true,
				"warrantyPeriod": "2 years",
				"expiryDate": "2026-01-10T14:20:00Z",
				"isExpiring": true
			}`))
		})
	})

	Describe("UnmarshalJSON", func() {
		It("decodes hasWarranty false as no warranty, ignoring stray fields", func() {
			var w Warranty
			Expect(json.Unmarshal([]byte(`{"hasWarranty": false, "warrantyPeriod": "1 year"}`), &w)).To(Succeed())
			Expect(w.HasWarranty()).To(BeFalse())
		})

		It("decodes coverage", func() {
			var w Warranty
			Expect(json.Unmarshal([]byte(`{"hasWarranty": true, "warrantyPeriod": "6 months", "expiryDate": "2026-01-10T14:20:00Z"}`), &w)).To(Succeed())
			c, ok := w.Coverage()
			Expect(ok).To(BeTrue())
			Expect(c.Period).To(Equal("6 months"))
			Expect(c.Expiry.Equal(expiry)).To(BeTrue())
		})

		It("rejects malformed input", func() {
			var w Warranty
			Expect(json.Unmarshal([]byte(`{"hasWarranty": "yes"}`), &w)).To(MatchError(ContainSubstring("unmarshaling warranty")))
		})
	})

	Describe("withExpiring", func() {
		var w Warranty

		BeforeEach(func() {
			w = Covered(Coverage{Period: "2 years", Expiry: expiry})
		})

		DescribeTable("evaluates the expiring window",
			func(now time.Time, want bool) {
				c, _ := w.withExpiring(now).Coverage()
				Expect(c.IsExpiring).To(Equal(want))
			},
			Entry("far from expiry", expiry.AddDate(-1, 0, 0), false),
			Entry("inside the window", expiry.Add(-10*24*time.Hour), true),
			Entry("on the window edge", expiry.Add(-ExpiringWindow), true),
			Entry("already expired", expiry.Add(time.Hour), false),
		)

		It("leaves no warranty alone", func() {
			Expect(NoWarranty().withExpiring(expiry).HasWarranty()).To(BeFalse())
		})
	})
})

var _ = Describe("Receipt", func() {
	It("survives a JSON round trip", func() {
		for _, r := range demoReceipts() {
			data, err := json.Marshal(r)
			Expect(err).NotTo(HaveOccurred())

			var back Receipt
			Expect(json.Unmarshal(data, &back)).To(Succeed())
			Expect(back).To(Equal(r))
		}
	})

	It("uses camelCase field names", func() {
		data, err := json.Marshal(demoReceipts()[1])
		Expect(err).NotTo(HaveOccurred())

		var fields map[string]any
		Expect(json.Unmarshal(data, &fields)).To(Succeed())
		Expect(fields).To(HaveKey("userId"))
		Expect(fields).To(HaveKey("originalName"))
		Expect(fields).To(HaveKey("uploadDate"))
		Expect(fields).To(HaveKey("parsedText"))
		Expect(fields).To(HaveKey("ecoScore"))
		Expect(fields).To(HaveKeyWithValue("warrantyInfo", HaveKeyWithValue("hasWarranty", true)))
	})

	It("computes the item total", func() {
		r := Receipt{Items: []Item{
			{Name: "a", Quantity: 2, Price: 1.5},
			{Name: "b", Quantity: 1, Price: 4},
		}}
		Expect(r.ItemTotal()).To(Equal(7.0))
	})

	It("clones without sharing items", func() {
		r := demoReceipts()[0]
		c := r.clone()
		c.Items[0].Name = "changed"
		Expect(r.Items[0].Name).To(Equal("Bananas Organic"))
	})
})
