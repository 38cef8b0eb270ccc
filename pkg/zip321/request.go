// Package zip321 reads and writes ZIP 321 payment request URIs and turns
// them into transaction outputs.
//
// A request names one or more payments:
//
//	zcash:<address>?amount=1.5&memo=<base64url>&message=thanks
//	zcash:?address=<a>&amount=1&address.1=<b>&amount.1=0.25
//
// The unsuffixed parameters describe payment 0; a ".N" suffix (1 to 9999,
// no leading zeros) describes payment N.
//
// See https://zips.z.cash/zip-0321.
package zip321

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/suffix-labs/zcash-txbuilder/pkg/transaction"
)

const (
	scheme   = "zcash:"
	maxIndex = 9999
)

// Request is a parsed payment request.
type Request struct {
	Payments []Payment
}

// Payment is one recipient of a request.
type Payment struct {
	Address string
	// Amount is in zatoshi and only meaningful when HasAmount is set.
	Amount    transaction.Amount
	HasAmount bool
	// Memo holds the raw memo bytes, at most transaction.MemoSize.
	Memo    []byte
	Label   string
	Message string
}

// Parse reads a payment request URI. Unknown parameters are ignored unless
// they carry the "req-" prefix, which marks them as required.
func Parse(uri string) (*Request, error) {
	if !strings.HasPrefix(strings.ToLower(uri), scheme) {
		return nil, fmt.Errorf("zip321: URI must start with %q", scheme)
	}
	rest := uri[len(scheme):]
	base, query, _ := strings.Cut(rest, "?")

	payments := map[int]*Payment{}
	get := func(i int) *Payment {
		if p, ok := payments[i]; ok {
			return p
		}
		p := &Payment{}
		payments[i] = p
		return p
	}
	seen := map[string]bool{}

	if base != "" {
		addr, err := url.PathUnescape(base)
		if err != nil {
			return nil, errors.Wrap(err, "zip321: address")
		}
		get(0).Address = addr
		seen["address"] = true
	}

	if query != "" {
		for _, pair := range strings.Split(query, "&") {
			rawKey, rawValue, _ := strings.Cut(pair, "=")
			if seen[rawKey] {
				return nil, fmt.Errorf("zip321: duplicate parameter %q", rawKey)
			}
			seen[rawKey] = true

			name, idx, err := splitKey(rawKey)
			if err != nil {
				return nil, err
			}
			value, err := url.QueryUnescape(rawValue)
			if err != nil {
				return nil, errors.Wrapf(err, "zip321: parameter %q", rawKey)
			}
			if err := setParam(get(idx), name, value); err != nil {
				return nil, errors.Wrapf(err, "zip321: payment %d", idx)
			}
		}
	}

	if len(payments) == 0 {
		return nil, fmt.Errorf("zip321: request has no payments")
	}
	idxs := make([]int, 0, len(payments))
	for i := range payments {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)

	req := &Request{Payments: make([]Payment, 0, len(idxs))}
	for _, i := range idxs {
		if payments[i].Address == "" {
			return nil, fmt.Errorf("zip321: payment %d has no address", i)
		}
		req.Payments = append(req.Payments, *payments[i])
	}
	return req, nil
}

// splitKey separates "amount.3" into ("amount", 3).
func splitKey(key string) (string, int, error) {
	name, suffix, indexed := strings.Cut(key, ".")
	if !indexed {
		return name, 0, nil
	}
	if suffix == "" || suffix[0] == '0' {
		return "", 0, fmt.Errorf("zip321: parameter %q has an invalid index", key)
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil || idx < 1 || idx > maxIndex {
		return "", 0, fmt.Errorf("zip321: parameter %q has an invalid index", key)
	}
	return name, idx, nil
}

func setParam(p *Payment, name, value string) error {
	switch name {
	case "address":
		p.Address = value
	case "amount":
		a, err := ParseAmount(value)
		if err != nil {
			return err
		}
		p.Amount, p.HasAmount = a, true
	case "memo":
		memo, err := base64.RawURLEncoding.DecodeString(value)
		if err != nil {
			return errors.Wrap(err, "memo is not base64url")
		}
		if len(memo) > transaction.MemoSize {
			return fmt.Errorf("memo is %d bytes, maximum is %d", len(memo), transaction.MemoSize)
		}
		p.Memo = memo
	case "label":
		p.Label = value
	case "message":
		p.Message = value
	default:
		if strings.HasPrefix(name, "req-") {
			return fmt.Errorf("unsupported required parameter %q", name)
		}
	}
	return nil
}

// ParseAmount reads a decimal ZEC amount with at most eight fractional
// digits and returns it in zatoshi.
func ParseAmount(s string) (transaction.Amount, error) {
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || !digits(whole) || (hasFrac && (frac == "" || !digits(frac))) {
		return 0, fmt.Errorf("amount %q is not a decimal number", s)
	}
	if len(frac) > 8 {
		return 0, fmt.Errorf("amount %q has more than 8 decimal places", s)
	}
	if len(whole) > 8 {
		return 0, fmt.Errorf("amount %q exceeds the money supply", s)
	}
	w, _ := strconv.ParseInt(whole, 10, 64)
	f, _ := strconv.ParseInt(frac+strings.Repeat("0", 8-len(frac)), 10, 64)
	a := transaction.Amount(w)*transaction.Coin + transaction.Amount(f)
	if !transaction.MoneyRange(a) {
		return 0, fmt.Errorf("amount %q exceeds the money supply", s)
	}
	return a, nil
}

func digits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// FormatAmount writes a in ZEC without trailing zeros.
func FormatAmount(a transaction.Amount) string {
	s := fmt.Sprintf("%d.%08d", a/transaction.Coin, a%transaction.Coin)
	return strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
}

// Encode writes the request as a URI. A single payment keeps its address in
// the URI path; otherwise every parameter is indexed by position.
func (r *Request) Encode() string {
	var b strings.Builder
	b.WriteString(scheme)

	var params []string
	add := func(name string, i int, value string) {
		if i > 0 {
			name += "." + strconv.Itoa(i)
		}
		params = append(params, name+"="+url.QueryEscape(value))
	}
	for i, p := range r.Payments {
		if len(r.Payments) == 1 {
			b.WriteString(url.PathEscape(p.Address))
		} else {
			add("address", i, p.Address)
		}
		if p.HasAmount {
			add("amount", i, FormatAmount(p.Amount))
		}
		if len(p.Memo) > 0 {
			add("memo", i, base64.RawURLEncoding.EncodeToString(p.Memo))
		}
		if p.Label != "" {
			add("label", i, p.Label)
		}
		if p.Message != "" {
			add("message", i, p.Message)
		}
	}
	if len(params) > 0 {
		b.WriteString("?")
		b.WriteString(strings.Join(params, "&"))
	}
	return b.String()
}

// Total sums the amounts of every payment. Each payment must carry one.
func (r *Request) Total() (transaction.Amount, error) {
	var total transaction.Amount
	for i, p := range r.Payments {
		if !p.HasAmount {
			return 0, fmt.Errorf("zip321: payment %d has no amount", i)
		}
		total += p.Amount
		if !transaction.MoneyRange(total) {
			return 0, fmt.Errorf("zip321: total exceeds the money supply")
		}
	}
	return total, nil
}
