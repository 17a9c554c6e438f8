package scanning

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultCurrency = "USD"
	defaultCategory = "General"
	defaultEcoScore = 5.0
	maxEcoScore     = 10.0

	// longer terms are misreads
	maxWarrantyMonths = 100 * 12
)

var (
	totalLine    = regexp.MustCompile(`(?i)^\s*(grand\s+)?total\b\W*?\$?\s*(\d+(?:\.\d{1,2})?)`)
	itemLine     = regexp.MustCompile(`^(.*?[A-Za-z].*?)\s+\$?(\d+\.\d{2})$`)
	quantityHead = regexp.MustCompile(`^(\d+)\s*[xX]\s+(.+)$`)
	warrantyLine = regexp.MustCompile(`(?i)warranty\W*(\d+)\s*(year|month)s?`)
	currencyCode = regexp.MustCompile(`\b(USD|EUR|GBP|CAD|AUD|CHF|JPY)\b`)
	skipItem     = regexp.MustCompile(`(?i)\b(subtotal|tax|change|cash|visa|mastercard|warranty)\b`)
)

// ParseText derives receipt fields from the text found on a receipt
func ParseText(text string) *ReceiptData {
	data := &ReceiptData{
		ParsedText: text,
		Currency:   defaultCurrency,
		Category:   defaultCategory,
		EcoScore:   defaultEcoScore,
		Items:      make([]LineItem, 0),
	}

	lines := strings.Split(text, "\n")

	// vendor is the first meaningful line
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) > 3 && !containsOnlyNumbers(line) {
			data.Vendor = line
			break
		}
	}

	totalFound := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := totalLine.FindStringSubmatch(line); m != nil {
			if amount, err := strconv.ParseFloat(m[2], 64); err == nil {
				data.Amount = amount
				totalFound = true
			}
			continue
		}
		if line == data.Vendor || skipItem.MatchString(line) {
			continue
		}
		if item, ok := parseItem(line); ok {
			data.Items = append(data.Items, item)
		}
	}

	if !totalFound {
		for _, item := range data.Items {
			data.Amount += item.Price * float64(item.Quantity)
		}
	}

	if m := currencyCode.FindStringSubmatch(text); m != nil {
		data.Currency = m[1]
	}

	if m := warrantyLine.FindStringSubmatch(text); m != nil {
		data.Warranty = parseWarranty(m[1], m[2])
	}

	data.EcoScore = ecoScore(data.Items, data.Vendor)
	data.Category = categorizeReceipt(data.Vendor)

	return data
}

func parseWarranty(count, unit string) *WarrantyTerm {
	n, err := strconv.Atoi(count)
	if err != nil || n <= 0 {
		return nil
	}
	unit = strings.ToLower(unit)
	limit := maxWarrantyMonths
	if unit == "year" {
		limit /= 12
	}
	if n > limit {
		return nil
	}

	months := n
	if unit == "year" {
		months = n * 12
	}
	if n != 1 {
		unit += "s"
	}
	return &WarrantyTerm{Period: fmt.Sprintf("%d %s", n, unit), Months: months}
}

func parseItem(line string) (LineItem, bool) {
	m := itemLine.FindStringSubmatch(line)
	if m == nil {
		return LineItem{}, false
	}
	price, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return LineItem{}, false
	}

	name := strings.TrimSpace(m[1])
	quantity := 1
	if q := quantityHead.FindStringSubmatch(name); q != nil {
		if n, err := strconv.Atoi(q[1]); err == nil && n > 0 {
			quantity = n
			name = strings.TrimSpace(q[2])
		}
	}

	return LineItem{
		Name:      name,
		Quantity:  quantity,
		Price:     price,
		Category:  categorizeItem(name),
		EcoImpact: itemEcoImpact(name),
	}, true
}

func containsOnlyNumbers(s string) bool {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || r == '.' || r == ' ') {
			return false
		}
	}
	return true
}

func categorizeItem(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "organic") || strings.Contains(name, "fresh"):
		return "Organic"
	case strings.Contains(name, "electronic") || strings.Contains(name, "phone"):
		return "Electronics"
	case strings.Contains(name, "food") || strings.Contains(name, "snack"):
		return "Food"
	}
	return defaultCategory
}

func itemEcoImpact(name string) float64 {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "organic"):
		return 9
	case strings.Contains(name, "recycl"):
		return 8
	case strings.Contains(name, "electronic"):
		return 3
	}
	return 5
}

// ecoScore is the mean item impact, plus one for eco-friendly vendors, capped at 10
func ecoScore(items []LineItem, vendor string) float64 {
	if len(items) == 0 {
		return defaultEcoScore
	}

	var total float64
	for _, item := range items {
		total += item.EcoImpact
	}
	score := total / float64(len(items))

	vendor = strings.ToLower(vendor)
	if strings.Contains(vendor, "whole foods") || strings.Contains(vendor, "organic") {
		score += 1
	}
	if score > maxEcoScore {
		score = maxEcoScore
	}
	return score
}

func categorizeReceipt(vendor string) string {
	vendor = strings.ToLower(vendor)
	switch {
	case strings.Contains(vendor, "grocery") || strings.Contains(vendor, "market"):
		return "Groceries"
	case strings.Contains(vendor, "restaurant") || strings.Contains(vendor, "cafe"):
		return "Restaurant"
	case strings.Contains(vendor, "electronics") || strings.Contains(vendor, "best buy"):
		return "Electronics"
	}
	return defaultCategory
}
