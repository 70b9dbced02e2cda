// marketctl is a CLI tool for poking the commerce API the way the web front
// end does. Each command performs a single read, making it composable for
// scripts.
//
// Commands:
//
//	marketctl version -api URL [-min VERSION]
//	marketctl products -api URL [-category ID] [-search TEXT] [-sort KEY]
//	marketctl order -api URL -no ORDER_NO -phone PHONE
//	marketctl quote -api URL -session KEY [-dong CODE]
//
// Examples:
//
//	marketctl version -api http://localhost:8000 -min 1.2.0
//	marketctl products -api http://localhost:8000 -search apple -q
//	STATUS=$(marketctl order -api http://localhost:8000 -no ORD-1001 -phone 0101234567 -q)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"market-web/internal/compat"
	"market-web/internal/market"
	"market-web/internal/model"
	"market-web/internal/transport"
	"market-web/internal/view"
	"market-web/internal/workflow"
)

// Global flags (apply to all commands)
var (
	apiURL     string
	tlsProfile string
	timeout    time.Duration
	quiet      bool
	noColor    bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen = "", "", ""
	colorYellow, colorCyan, colorGray = "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "version":
		runVersion(args)
	case "products":
		runProducts(args)
	case "order":
		runOrder(args)
	case "quote":
		runQuote(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `marketctl - commerce API probe

Usage:
  marketctl <command> [options]

Commands:
  version   Show the backend API version and check it against a minimum
  products  List products matching a catalog filter
  order     Look up an order by number and phone
  quote     Quote the cart held under a shopper session key

Run 'marketctl <command> -h' for command-specific options.
`)
}

// newFlagSet registers the flags every command shares.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&apiURL, "api", "http://localhost:8000", "Commerce API base URL")
	fs.StringVar(&tlsProfile, "tls", "default", "TLS profile (default or chrome)")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output the key value")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: marketctl %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// newClient builds the same gateway the web server uses.
func newClient() *market.Client {
	if noColor {
		disableColors()
	}
	profile, err := transport.ParseProfile(tlsProfile)
	if err != nil {
		fatal("%v", err)
	}
	c, err := market.New(market.Config{
		BaseURL:   apiURL,
		Timeout:   timeout,
		Transport: transport.New(profile, timeout),
	})
	if err != nil {
		fatal("%v", err)
	}
	return c
}

// =============================================================================
// VERSION COMMAND
// =============================================================================

func runVersion(args []string) {
	fs := newFlagSet("version", "version [-min VERSION] [options]")
	var minVersion string
	fs.StringVar(&minVersion, "min", "", "Minimum compatible backend version")
	fs.Parse(args)

	checker, err := compat.NewChecker(newClient(), minVersion)
	if err != nil {
		fatal("%v", err)
	}

	res, err := checker.Check(context.Background())
	if quiet {
		fmt.Println(res.BackendVersion)
		if err != nil {
			os.Exit(1)
		}
		return
	}
	if err != nil {
		if errors.Is(err, compat.ErrIncompatible) {
			fatal("Backend incompatible: %v", err)
		}
		fatal("Version check failed: %v", err)
	}

	printSuccess("Backend compatible")
	fmt.Printf("  Version: %s%s%s\n", colorCyan, res.BackendVersion, colorReset)
	if res.MinVersion != "" {
		fmt.Printf("  Minimum: %s\n", res.MinVersion)
	}
}

// =============================================================================
// PRODUCTS COMMAND
// =============================================================================

func runProducts(args []string) {
	fs := newFlagSet("products", "products [-category ID] [-search TEXT] [-sort KEY] [options]")
	var category, search, sortKey string
	var promo bool
	fs.StringVar(&category, "category", "", "Category ID")
	fs.StringVar(&search, "search", "", "Search text")
	fs.StringVar(&sortKey, "sort", "popular", "Sort key")
	fs.BoolVar(&promo, "promo", false, "Only promoted products")
	fs.Parse(args)

	q := model.ProductQuery{
		CategoryID: workflow.OptionalInt(category),
		Query:      strings.TrimSpace(search),
		Sort:       sortKey,
	}
	if promo {
		q.Promo = &promo
	}

	products, err := newClient().Products(context.Background(), q)
	if err != nil {
		fatal("Failed to list products: %s", describe(err))
	}

	if quiet {
		for _, p := range products {
			fmt.Println(p.ID)
		}
		return
	}

	printSuccess("%d products", len(products))
	for _, p := range products {
		price := view.Won(p.EffectivePrice)
		if p.OnSale() {
			price = fmt.Sprintf("%s%s%s (was %s)", colorYellow, price, colorReset, view.Won(p.BasePrice))
		}
		fmt.Printf("  %s%5d%s  %-30s %s  stock %d\n", colorCyan, p.ID, colorReset, p.Name, price, p.StockQty)
	}
}

// =============================================================================
// ORDER COMMAND
// =============================================================================

func runOrder(args []string) {
	fs := newFlagSet("order", "order -no ORDER_NO -phone PHONE [options]")
	var orderNo, phone string
	fs.StringVar(&orderNo, "no", "", "Order number (required)")
	fs.StringVar(&phone, "phone", "", "Customer phone (required)")
	fs.Parse(args)

	if strings.TrimSpace(orderNo) == "" || strings.TrimSpace(phone) == "" {
		fs.Usage()
		os.Exit(1)
	}

	order, err := newClient().Order(context.Background(), strings.TrimSpace(orderNo), strings.TrimSpace(phone))
	if err != nil {
		fatal("Failed to get order: %s", describe(err))
	}

	if quiet {
		fmt.Println(order.Status)
		return
	}

	printSuccess("Order %s", order.OrderNo)
	fmt.Printf("  Status: %s%s%s\n", colorCyan, order.Status, colorReset)
	fmt.Printf("  Ordered: %s\n", order.OrderedAt.Format(time.DateTime))
	for _, it := range order.Items {
		line := fmt.Sprintf("    - %s x%d  %s", it.ProductName, it.QtyOrdered, view.Won(it.LineEstimated))
		if it.Short() {
			line += fmt.Sprintf("  %s(short: %d fulfilled)%s", colorYellow, *it.QtyFulfilled, colorReset)
		}
		fmt.Println(line)
	}
	fmt.Printf("  Total: %s%s%s\n", colorGreen, view.Won(order.TotalEstimated), colorReset)
	if order.TotalFinal != nil {
		fmt.Printf("  Final: %s%s%s\n", colorGreen, view.Won(*order.TotalFinal), colorReset)
	}
}

// =============================================================================
// QUOTE COMMAND
// =============================================================================

func runQuote(args []string) {
	fs := newFlagSet("quote", "quote -session KEY [-dong CODE] [options]")
	var sessionKey, dong string
	fs.StringVar(&sessionKey, "session", "", "Shopper session key (required)")
	fs.StringVar(&dong, "dong", workflow.DefaultDongCode, "Delivery area code")
	fs.Parse(args)

	if strings.TrimSpace(sessionKey) == "" {
		fs.Usage()
		os.Exit(1)
	}

	quote, err := newClient().Quote(context.Background(), &model.CheckoutRequest{
		SessionKey: sessionKey,
		DongCode:   dong,
	})
	if err != nil {
		fatal("Failed to quote: %s", describe(err))
	}

	if quiet {
		fmt.Println(quote.Valid)
		return
	}

	if quote.Valid {
		printSuccess("Quote valid")
	} else {
		printWarning("Quote invalid")
	}
	for _, e := range quote.Errors {
		printError("%s", e)
	}
	fmt.Printf("  Subtotal: %s\n", view.Won(quote.Subtotal))
	fmt.Printf("  Delivery: %s\n", view.Won(quote.DeliveryFee))
	fmt.Printf("  Total: %s%s%s\n", colorGreen, view.Won(quote.TotalEstimated), colorReset)
	fmt.Printf("  %sMinimum %s, free delivery from %s%s\n", colorGray,
		view.Won(quote.MinOrderAmount), view.Won(quote.FreeDeliveryThreshold), colorReset)
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// describe adds the backend status when err carries one.
func describe(err error) string {
	if status := model.StatusCode(err); status != 0 {
		return fmt.Sprintf("HTTP %d: %v", status, err)
	}
	return err.Error()
}

func printSuccess(format string, args ...any) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printError(format string, args ...any) {
	fmt.Printf("%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...any) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
