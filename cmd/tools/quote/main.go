package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/snapstudio-api/internal/pricing"
)

// addOnFlag collects repeated -addon key=value pairs. A bare key turns a
// percentage add-on on.
type addOnFlag pricing.Selection

func (a addOnFlag) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (a addOnFlag) Set(v string) error {
	key, raw, found := strings.Cut(v, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("empty add-on key")
	}
	if !found {
		a[key] = pricing.Flag(true)
		return nil
	}
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		a[key] = pricing.Qty(n)
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("add-on %s: %q is neither a number nor a boolean", key, raw)
	}
	a[key] = pricing.Flag(b)
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "quote:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	qty := fs.Int("qty", 0, "number of edits")
	pkgID := fs.String("package", "", "flat-rate package id, overrides -qty")
	marketplace := fs.String("marketplace", "", "selected marketplace")
	sel := pricing.Selection{}
	fs.Var(addOnFlag(sel), "addon", "add-on as key or key=value, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	calc := pricing.NewCalculator(pricing.DefaultTierTable(), pricing.DefaultCatalog())
	if errs := calc.AddOns().ValidateSelection(sel, *marketplace); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for k := range errs {
			msgs = append(msgs, k+": "+errs[k])
		}
		sort.Strings(msgs)
		return errors.New(strings.Join(msgs, "; "))
	}
	opts := pricing.Options{SelectedMarketplace: *marketplace}

	var q pricing.Quote
	if *pkgID != "" {
		pkg, ok := pricing.DefaultPackages().Lookup(*pkgID)
		if !ok {
			return fmt.Errorf("unknown package %q", *pkgID)
		}
		q = calc.CalculatePackage(pkg, sel, opts)
	} else {
		if *qty <= 0 {
			return errors.New("-qty must be a positive number")
		}
		q = calc.Calculate(*qty, sel, opts)
	}

	for _, line := range q.Breakdown {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
