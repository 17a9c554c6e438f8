package scanning

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Simulated", func() {
	var (
		inspectErr error
		inspected  []string
		delay      time.Duration
		text       string
		scanner    *Simulated
		ctx        context.Context
		data       *ReceiptData
		err        error
	)

	BeforeEach(func() {
		inspectErr = nil
		inspected = nil
		delay = 0
		text = ""
		ctx = context.Background()
	})

	JustBeforeEach(func() {
		scanner = NewSimulatedWithInspector(delay, text, func(data []byte, contentType string) (*Document, error) {
			inspected = append(inspected, contentType)
			if inspectErr != nil {
				return nil, inspectErr
			}
			return &Document{Format: "pdf", Pages: 1}, nil
		})
		data, err = scanner.ScanReceipt(ctx, []byte("%PDF-1.4"), "application/pdf")
	})

	It("inspects the document", func() {
		Expect(inspected).To(Equal([]string{"application/pdf"}))
	})

	It("returns the default sample", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(data.Vendor).To(Equal("SAMPLE STORE"))
		Expect(data.Amount).To(Equal(15.0))
		Expect(data.EcoScore).To(Equal(5.0))
	})

	When("a text is configured", func() {
		BeforeEach(func() {
			text = "GREEN GROCER\nORGANIC KALE $4.00\nTOTAL: $4.00"
		})

		It("parses that text", func() {
			Expect(data.Vendor).To(Equal("GREEN GROCER"))
			Expect(data.EcoScore).To(Equal(9.0))
		})
	})

	When("the document cannot be opened", func() {
		BeforeEach(func() {
			inspectErr = errors.New("broken xref table")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("inspecting document")))
			Expect(err).To(MatchError(inspectErr))
			Expect(data).To(BeNil())
		})
	})

	When("the context is cancelled while scanning", func() {
		BeforeEach(func() {
			delay = time.Hour
			cancelled, cancel := context.WithCancel(context.Background())
			cancel()
			ctx = cancelled
		})

		It("stops waiting", func() {
			Expect(err).To(MatchError(context.Canceled))
			Expect(data).To(BeNil())
		})
	})

	It("closes without error", func() {
		Expect(scanner.Close()).To(Succeed())
	})

	When("using the real inspector on an image", func() {
		It("scans a PNG", func() {
			data, err := NewSimulated(0, "").ScanReceipt(context.Background(), encodePNG(8, 6), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Vendor).To(Equal("SAMPLE STORE"))
		})
	})
})
